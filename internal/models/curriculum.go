package models

import (
	"time"

	"github.com/lib/pq"
)

// Curriculum is the versioned ordered list of lesson identifiers. Streak
// adjacency is defined by index adjacency in Lessons, never by submission
// chronology.
type Curriculum struct {
	ID        string         `db:"id" json:"id"`
	Version   int            `db:"version" json:"version"`
	Active    bool           `db:"active" json:"active"`
	Lessons   pq.StringArray `db:"lessons" json:"lessons"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// IndexOf returns the curriculum position of a lesson, or -1 when unknown.
func (c *Curriculum) IndexOf(lesson string) int {
	for i, l := range c.Lessons {
		if l == lesson {
			return i
		}
	}
	return -1
}
