package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/scoring-api/internal/models"
)

// HistoryRepository queries the append-only scoring ledger. Writes happen
// only through ScoreRepository.CommitScore, which appends rows inside the
// same transaction as the score update.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs a history repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `id, student_id, process_id, process_lesson, event_type, data,
        score_before, score_added, score_after, base_points, bonus_points, bonus_lessons, created_at`

// Last returns the most recent ledger entry for (student, type), scoped to
// a lesson when one is given. A lesson-scoped miss falls back to the latest
// unscoped entry. sql.ErrNoRows passes through when nothing matches at all.
func (r *HistoryRepository) Last(ctx context.Context, studentID string, t models.EventType, lesson string) (*models.HistoryEntry, error) {
	if lesson != "" {
		entry, err := r.last(ctx, studentID, t, &lesson)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return r.last(ctx, studentID, t, nil)
}

func (r *HistoryRepository) last(ctx context.Context, studentID string, t models.EventType, lesson *string) (*models.HistoryEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM history_entries WHERE student_id = $1 AND event_type = $2`, historyColumns)
	args := []interface{}{studentID, t}
	if lesson != nil {
		query += " AND process_lesson = $3"
		args = append(args, *lesson)
	}
	query += " ORDER BY created_at DESC LIMIT 1"

	var entry models.HistoryEntry
	if err := r.db.GetContext(ctx, &entry, query, args...); err != nil {
		return nil, err
	}
	return &entry, nil
}

// BonusOnRecord sums the bonus points ledgered for one (student, type,
// lesson). Edits net their new award against exactly this amount.
func (r *HistoryRepository) BonusOnRecord(ctx context.Context, studentID string, t models.EventType, lesson string) (int, error) {
	const query = `SELECT COALESCE(SUM(bonus_points), 0) FROM history_entries
        WHERE student_id = $1 AND event_type = $2 AND process_lesson = $3`
	var total int
	if err := r.db.GetContext(ctx, &total, query, studentID, t, lesson); err != nil {
		return 0, fmt.Errorf("sum ledger bonus: %w", err)
	}
	return total, nil
}

// ListByStudent returns a page of a student's ledger, newest first, plus the
// total row count.
func (r *HistoryRepository) ListByStudent(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	where := "WHERE student_id = $1"
	args := []interface{}{filter.StudentID}
	if filter.Type != "" {
		where += fmt.Sprintf(" AND event_type = $%d", len(args)+1)
		args = append(args, filter.Type)
	}
	if filter.Lesson != "" {
		where += fmt.Sprintf(" AND process_lesson = $%d", len(args)+1)
		args = append(args, filter.Lesson)
	}

	query := fmt.Sprintf(`SELECT %s FROM history_entries %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		historyColumns, where, size, offset)
	var entries []models.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM history_entries %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}
	return entries, total, nil
}
