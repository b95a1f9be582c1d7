package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PointRule is one row of a scoring decision table. A rule either matches a
// status key exactly (Match non-empty) or an inclusive percentage range
// (Min and Max set). Rules are evaluated in configured order; the first
// match wins.
type PointRule struct {
	Match  string `json:"match,omitempty"`
	Min    *int   `json:"min,omitempty"`
	Max    *int   `json:"max,omitempty"`
	Points int    `json:"points"`
}

// PointRules is an ordered rule list stored as a JSONB column.
type PointRules []PointRule

// Value implements driver.Valuer.
func (r PointRules) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *PointRules) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// BonusRule awards extra points for a run of LastN curriculum-consecutive
// lessons that all scored exactly Percentage.
type BonusRule struct {
	LastN      int `json:"last_n"`
	Percentage int `json:"percentage"`
	Points     int `json:"points"`
}

// BonusRules is a bonus rule list stored as a JSONB column.
type BonusRules []BonusRule

// Value implements driver.Valuer.
func (r BonusRules) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *BonusRules) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// ScoringCondition is the immutable scoring configuration for one event type
// variant. The engine reads it per request and never mutates it.
type ScoringCondition struct {
	ID         string     `db:"id" json:"id"`
	Type       EventType  `db:"event_type" json:"event_type"`
	WithDegree *bool      `db:"with_degree" json:"with_degree,omitempty"`
	Rules      PointRules `db:"rules" json:"rules"`
	BonusRules BonusRules `db:"bonus_rules" json:"bonus_rules,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
