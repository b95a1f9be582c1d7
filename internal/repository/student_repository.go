package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/scoring-api/internal/models"
)

// StudentRepository reads student state: the score projection, per-lesson
// records, and online submissions. Score writes go through ScoreRepository.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student. sql.ErrNoRows passes through for not-found.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, full_name, score, created_at, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// LessonRecords returns all lesson records for a student.
func (r *StudentRepository) LessonRecords(ctx context.Context, studentID string) ([]models.LessonRecord, error) {
	const query = `SELECT student_id, lesson, attended, homework_status, homework_degree, quiz_degree, updated_at
        FROM lesson_records WHERE student_id = $1`
	var records []models.LessonRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list lesson records: %w", err)
	}
	return records, nil
}

// Submissions returns a student's online submissions for one event type,
// oldest first so later submissions override earlier ones.
func (r *StudentRepository) Submissions(ctx context.Context, studentID string, t models.EventType) ([]models.Submission, error) {
	const query = `SELECT id, student_id, event_type, lesson, percentage, submitted_at
        FROM submissions WHERE student_id = $1 AND event_type = $2 ORDER BY submitted_at ASC`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, studentID, t); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}
