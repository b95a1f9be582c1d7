package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tutorhub/scoring-api/internal/models"
	"github.com/tutorhub/scoring-api/pkg/config"
	appErrors "github.com/tutorhub/scoring-api/pkg/errors"
	"github.com/tutorhub/scoring-api/pkg/export"
)

type historyLister interface {
	Last(ctx context.Context, studentID string, t models.EventType, lesson string) (*models.HistoryEntry, error)
	ListByStudent(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, int, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// HistoryService reads the scoring ledger for consumers: last-entry lookups,
// paginated listings, and exported statements.
type HistoryService struct {
	history   historyLister
	students  studentFinder
	exportCfg config.ExportConfig
	logger    *zap.Logger
}

// NewHistoryService constructs a history service.
func NewHistoryService(history historyLister, students studentFinder, exportCfg config.ExportConfig, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{history: history, students: students, exportCfg: exportCfg, logger: logger}
}

// Last returns the most recent ledger entry for a student and event type,
// scoped to a lesson when one is given.
func (s *HistoryService) Last(ctx context.Context, studentID string, t models.EventType, lesson string) (*models.HistoryEntry, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id required")
	}
	if !t.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown event type")
	}
	entry, err := s.history.Last(ctx, studentID, t, lesson)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no ledger entry for student")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read ledger")
	}
	return entry, nil
}

// List returns a page of a student's ledger, newest first.
func (s *HistoryService) List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, *models.Pagination, error) {
	if filter.StudentID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "student id required")
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown event type")
	}
	if _, err := s.students.FindByID(ctx, filter.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	entries, total, err := s.history.ListByStudent(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Statement assembles a student's full ledger, oldest first, for CSV or PDF
// export. The row count is capped by configuration.
func (s *HistoryService) Statement(ctx context.Context, studentID string) (*export.Statement, error) {
	if !s.exportCfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "statements are disabled")
	}
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id required")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	maxRows := s.exportCfg.MaxRows
	if maxRows <= 0 {
		maxRows = 500
	}

	var collected []models.HistoryEntry
	for page := 1; len(collected) < maxRows; page++ {
		entries, total, err := s.history.ListByStudent(ctx, models.HistoryFilter{
			StudentID: studentID,
			Page:      page,
			PageSize:  200,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger")
		}
		collected = append(collected, entries...)
		if len(entries) == 0 || len(collected) >= total {
			break
		}
	}
	if len(collected) > maxRows {
		collected = collected[:maxRows]
	}

	st := &export.Statement{
		StudentID:   student.ID,
		StudentName: student.FullName,
		FinalScore:  student.Score,
		GeneratedAt: time.Now().UTC(),
		Rows:        make([]export.StatementRow, 0, len(collected)),
	}
	// Listing is newest first; statements read top to bottom in time order.
	for i := len(collected) - 1; i >= 0; i-- {
		entry := collected[i]
		lesson := ""
		if entry.ProcessLesson != nil {
			lesson = *entry.ProcessLesson
		}
		st.Rows = append(st.Rows, export.StatementRow{
			Timestamp:   entry.CreatedAt,
			EventType:   string(entry.Type),
			Lesson:      lesson,
			BasePoints:  entry.BasePoints,
			BonusPoints: entry.BonusPoints,
			PointsAdded: entry.ScoreAdded,
			ScoreAfter:  entry.ScoreAfter,
		})
	}
	return st, nil
}
