package models

// EventType identifies the kind of graded event driving a score change.
type EventType string

const (
	EventAttendance EventType = "attendance"
	EventHomework   EventType = "homework"
	EventQuiz       EventType = "quiz"
	EventMockExam   EventType = "mock_exam"
)

// Valid reports whether the event type is one of the supported kinds.
func (t EventType) Valid() bool {
	switch t {
	case EventAttendance, EventHomework, EventQuiz, EventMockExam:
		return true
	}
	return false
}

// HomeworkStatus is the tri-state completion marker for status-graded homework.
type HomeworkStatus string

const (
	HomeworkDone         HomeworkStatus = "done"
	HomeworkNotCompleted HomeworkStatus = "not_completed"
	HomeworkNone         HomeworkStatus = "no_homework"
)

// AttendanceStatus values used as rule match keys.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
)

// AttendancePayload carries the new and optionally previous attendance mark.
type AttendancePayload struct {
	Status         string  `json:"status"`
	PreviousStatus *string `json:"previous_status,omitempty"`
}

// HomeworkPayload carries homework state. Exactly one of the percentage pair
// or the status pair is used, selected by the condition's degree variant.
type HomeworkPayload struct {
	Percentage         *int            `json:"percentage,omitempty"`
	PreviousPercentage *int            `json:"previous_percentage,omitempty"`
	Done               *HomeworkStatus `json:"done,omitempty"`
	PreviousDone       *HomeworkStatus `json:"previous_done,omitempty"`
}

// ByDegree reports whether the payload addresses the percentage-graded variant.
func (p *HomeworkPayload) ByDegree() bool {
	return p != nil && (p.Percentage != nil || p.PreviousPercentage != nil)
}

// QuizPayload carries quiz result percentages. A zero percentage encodes
// "didn't attend the quiz".
type QuizPayload struct {
	Percentage         *int `json:"percentage,omitempty"`
	PreviousPercentage *int `json:"previous_percentage,omitempty"`
}

// MockExamPayload carries mock exam result percentages.
type MockExamPayload struct {
	Percentage         *int `json:"percentage,omitempty"`
	PreviousPercentage *int `json:"previous_percentage,omitempty"`
}
