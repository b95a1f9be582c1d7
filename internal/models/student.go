package models

import "time"

// Student is the score projection for one learner. Score is denormalized for
// read speed and always equals the floor-clamped running sum of applied
// ledger deltas.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Score     int       `db:"score" json:"score"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LessonRecord is the per-lesson state kept for a student. The engine only
// reads it for streak detection; upstream collaborators own the writes.
type LessonRecord struct {
	StudentID      string         `db:"student_id" json:"student_id"`
	Lesson         string         `db:"lesson" json:"lesson"`
	Attended       bool           `db:"attended" json:"attended"`
	HomeworkStatus HomeworkStatus `db:"homework_status" json:"homework_status"`
	HomeworkDegree *string        `db:"homework_degree" json:"homework_degree,omitempty"`
	QuizDegree     *string        `db:"quiz_degree" json:"quiz_degree,omitempty"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Submission is an online submission result for one lesson. Submissions are
// the ground truth for streak detection and override lesson-record degrees.
type Submission struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	EventType   EventType `db:"event_type" json:"event_type"`
	Lesson      string    `db:"lesson" json:"lesson"`
	Percentage  int       `db:"percentage" json:"percentage"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
