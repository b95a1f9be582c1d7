package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/scoring-api/internal/models"
)

// ErrStaleScore signals that the student's score changed between the read
// and the compare-and-set write. Callers rerun the whole compute-and-apply
// cycle, never just the write half.
var ErrStaleScore = errors.New("student score changed concurrently")

// ScoreRepository owns the only write path for scores: a compare-and-set
// update of students.score plus the ledger appends, in one transaction.
// A failed ledger append therefore fails the whole event.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository constructs a score repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// CommitScore applies newScore if the stored score still equals
// expectedScore and appends the given ledger entries atomically.
func (r *ScoreRepository) CommitScore(ctx context.Context, studentID string, expectedScore, newScore int, entries []models.HistoryEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin score commit: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE students SET score = $1, updated_at = $2 WHERE id = $3 AND score = $4`,
		newScore, time.Now().UTC(), studentID, expectedScore)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update score: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update score result: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return ErrStaleScore
	}

	const insert = `INSERT INTO history_entries (id, student_id, process_id, process_lesson, event_type, data,
                score_before, score_added, score_after, base_points, bonus_points, bonus_lessons, created_at)
        VALUES (:id, :student_id, :process_id, :process_lesson, :event_type, :data,
                :score_before, :score_added, :score_after, :base_points, :bonus_points, :bonus_lessons, :created_at)`
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, insert, entries[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("append ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit score: %w", err)
	}
	return nil
}
