package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// HistoryEntry is one append-only ledger row. Entries are created once and
// never mutated; the most recent entry per (student, type, lesson) is the
// only valid source for a subsequent reversal.
type HistoryEntry struct {
	ID            string         `db:"id" json:"id"`
	StudentID     string         `db:"student_id" json:"student_id"`
	ProcessID     string         `db:"process_id" json:"process_id"`
	ProcessLesson *string        `db:"process_lesson" json:"process_lesson,omitempty"`
	Type          EventType      `db:"event_type" json:"event_type"`
	Data          types.JSONText `db:"data" json:"data,omitempty"`
	ScoreBefore   int            `db:"score_before" json:"score_before"`
	ScoreAdded    int            `db:"score_added" json:"score_added"`
	ScoreAfter    int            `db:"score_after" json:"score_after"`
	BasePoints    int            `db:"base_points" json:"base_points"`
	BonusPoints   int            `db:"bonus_points" json:"bonus_points"`
	BonusLessons  pq.StringArray `db:"bonus_lessons" json:"bonus_lessons,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// HistoryFilter narrows ledger queries.
type HistoryFilter struct {
	StudentID string
	Type      EventType
	Lesson    string
	Page      int
	PageSize  int
}
