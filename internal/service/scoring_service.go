package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorhub/scoring-api/internal/models"
	"github.com/tutorhub/scoring-api/internal/repository"
	"github.com/tutorhub/scoring-api/pkg/config"
	appErrors "github.com/tutorhub/scoring-api/pkg/errors"
)

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	LessonRecords(ctx context.Context, studentID string) ([]models.LessonRecord, error)
	Submissions(ctx context.Context, studentID string, t models.EventType) ([]models.Submission, error)
}

type conditionReader interface {
	FindByType(ctx context.Context, t models.EventType, withDegree *bool) (*models.ScoringCondition, error)
}

type curriculumReader interface {
	Active(ctx context.Context) (*models.Curriculum, error)
}

type ledgerReader interface {
	Last(ctx context.Context, studentID string, t models.EventType, lesson string) (*models.HistoryEntry, error)
	BonusOnRecord(ctx context.Context, studentID string, t models.EventType, lesson string) (int, error)
}

type scoreCommitter interface {
	CommitScore(ctx context.Context, studentID string, expectedScore, newScore int, entries []models.HistoryEntry) error
}

// cascadeTargets declares which downstream ledger entries are reversed when
// an upstream event is undone for a lesson. Attendance is upstream of the
// lesson's homework and quiz grades.
var cascadeTargets = map[models.EventType][]models.EventType{
	models.EventAttendance: {models.EventHomework, models.EventQuiz},
}

// ApplyEventRequest is the single scoring operation payload. Exactly one
// typed payload must be set, matching Type.
type ApplyEventRequest struct {
	StudentID   string                    `json:"student_id" validate:"required"`
	Type        models.EventType          `json:"type" validate:"required"`
	Lesson      string                    `json:"lesson,omitempty"`
	ReverseOnly bool                      `json:"reverse_only,omitempty"`
	Attendance  *models.AttendancePayload `json:"attendance,omitempty"`
	Homework    *models.HomeworkPayload   `json:"homework,omitempty"`
	Quiz        *models.QuizPayload       `json:"quiz,omitempty"`
	MockExam    *models.MockExamPayload   `json:"mock_exam,omitempty"`
}

// ApplyEventResult reports what the engine actually applied.
type ApplyEventResult struct {
	PointsAdded   int      `json:"points_added"`
	BasePoints    int      `json:"base_points"`
	BonusPoints   int      `json:"bonus_points"`
	BonusLessons  []string `json:"bonus_lessons,omitempty"`
	PreviousScore int      `json:"previous_score"`
	NewScore      int      `json:"new_score"`
	ProcessID     *string  `json:"process_id"`
}

type cascadeReversal struct {
	eventType models.EventType
	base      int
	bonus     int
	lessons   []string
}

type eventOutcome struct {
	base         int
	bonus        int
	bonusLessons []string
	cascades     []cascadeReversal
}

// ScoringService converts graded events into score deltas: rule evaluation,
// streak bonuses, reversal of previously applied points, and the atomic
// score-plus-ledger commit. Requests for one student are serialized; a
// compare-and-set retry backs the lock up against external score writers.
type ScoringService struct {
	students   studentReader
	conditions conditionReader
	curricula  curriculumReader
	ledger     ledgerReader
	scores     scoreCommitter
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService

	enabled       bool
	commitRetries int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewScoringService constructs the scoring engine.
func NewScoringService(students studentReader, conditions conditionReader, curricula curriculumReader, ledger ledgerReader, scores scoreCommitter, cfg config.ScoringConfig, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *ScoringService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := cfg.CommitRetries
	if retries < 0 {
		retries = 0
	}
	return &ScoringService{
		students:      students,
		conditions:    conditions,
		curricula:     curricula,
		ledger:        ledger,
		scores:        scores,
		validator:     validate,
		logger:        logger,
		metrics:       metrics,
		enabled:       cfg.Enabled,
		commitRetries: retries,
		locks:         make(map[string]*sync.Mutex),
	}
}

// Apply processes one scoring event end to end and returns the applied delta.
func (s *ScoringService) Apply(ctx context.Context, req ApplyEventRequest) (*ApplyEventResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scoring event")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown event type")
	}
	if err := validatePayload(req); err != nil {
		return nil, err
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if !s.enabled {
		// Scoring switch off: the event is a tolerated no-op.
		return &ApplyEventResult{PreviousScore: student.Score, NewScore: student.Score, ProcessID: nil}, nil
	}

	lock := s.studentLock(req.StudentID)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; ; attempt++ {
		result, err := s.computeAndCommit(ctx, req)
		if err != nil {
			if errors.Is(err, repository.ErrStaleScore) && attempt < s.commitRetries {
				s.metrics.RecordCommitConflict()
				continue
			}
			if errors.Is(err, repository.ErrStaleScore) {
				return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "score update conflicted repeatedly")
			}
			return nil, err
		}
		s.metrics.RecordEvent(req.Type, req.ReverseOnly)
		return result, nil
	}
}

func (s *ScoringService) computeAndCommit(ctx context.Context, req ApplyEventRequest) (*ApplyEventResult, error) {
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	condition, err := s.findCondition(ctx, req)
	if err != nil {
		// A reversal sourced from the ledger needs no rules, only the
		// fallback re-evaluation does. Missing or mismatched condition
		// configuration must not block undoing what is already on record.
		if !req.ReverseOnly || !appErrors.Is(err, appErrors.ErrConditionMissing) {
			return nil, err
		}
		condition = &models.ScoringCondition{Type: req.Type}
	}

	outcome, err := s.compute(ctx, condition, req)
	if err != nil {
		return nil, err
	}

	processID := uuid.NewString()
	entries, newScore := s.buildEntries(req, student.Score, processID, outcome)

	if err := s.scores.CommitScore(ctx, req.StudentID, student.Score, newScore, entries); err != nil {
		if errors.Is(err, repository.ErrStaleScore) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit score")
	}

	if newScore != student.Score+totalDelta(outcome) {
		s.metrics.RecordClampedScore()
	}
	if len(outcome.cascades) > 0 {
		s.metrics.RecordCascadeReversals(len(outcome.cascades))
	}
	if outcome.bonus != 0 {
		s.metrics.RecordBonusAward(outcome.bonus)
	}

	s.logger.Info("scoring event applied",
		zap.String("student_id", req.StudentID),
		zap.String("event_type", string(req.Type)),
		zap.String("process_id", processID),
		zap.Bool("reverse_only", req.ReverseOnly),
		zap.Int("base_points", outcome.base),
		zap.Int("bonus_points", outcome.bonus),
		zap.Int("score_before", student.Score),
		zap.Int("score_after", newScore),
	)

	return &ApplyEventResult{
		PointsAdded:   newScore - student.Score,
		BasePoints:    outcome.base,
		BonusPoints:   outcome.bonus,
		BonusLessons:  outcome.bonusLessons,
		PreviousScore: student.Score,
		NewScore:      newScore,
		ProcessID:     &processID,
	}, nil
}

func (s *ScoringService) findCondition(ctx context.Context, req ApplyEventRequest) (*models.ScoringCondition, error) {
	var withDegree *bool
	if req.Type == models.EventHomework {
		byDegree := req.Homework.ByDegree()
		withDegree = &byDegree
	}
	condition, err := s.conditions.FindByType(ctx, req.Type, withDegree)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConditionMissing, "no scoring condition for event type "+string(req.Type))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scoring condition")
	}
	return condition, nil
}

// compute resolves the net effect of one event: the apply-or-reverse base
// delta, the streak bonus delta, and any cascade reversals.
func (s *ScoringService) compute(ctx context.Context, condition *models.ScoringCondition, req ApplyEventRequest) (*eventOutcome, error) {
	switch req.Type {
	case models.EventAttendance:
		return s.computeAttendance(ctx, condition, req)
	case models.EventHomework:
		if req.Homework.ByDegree() {
			return s.computePercentage(ctx, condition, req, req.Homework.Percentage, req.Homework.PreviousPercentage)
		}
		return s.computeHomeworkStatus(ctx, condition, req)
	case models.EventQuiz:
		return s.computePercentage(ctx, condition, req, req.Quiz.Percentage, req.Quiz.PreviousPercentage)
	default: // mock exam
		return s.computePercentage(ctx, condition, req, req.MockExam.Percentage, req.MockExam.PreviousPercentage)
	}
}

func (s *ScoringService) computeAttendance(ctx context.Context, condition *models.ScoringCondition, req ApplyEventRequest) (*eventOutcome, error) {
	payload := req.Attendance

	if req.ReverseOnly {
		base, bonus, found, err := s.reversalFromLedger(ctx, req.StudentID, req.Type, req.Lesson)
		if err != nil {
			return nil, err
		}
		if !found && payload.PreviousStatus != nil {
			base = -evaluateMatch(condition.Rules, *payload.PreviousStatus)
		}
		outcome := &eventOutcome{base: base, bonus: bonus}

		cascades, err := s.collectCascades(ctx, req)
		if err != nil {
			return nil, err
		}
		outcome.cascades = cascades
		return outcome, nil
	}

	base := evaluateMatch(condition.Rules, payload.Status)
	if payload.PreviousStatus != nil {
		base -= evaluateMatch(condition.Rules, *payload.PreviousStatus)
	}
	return &eventOutcome{base: base}, nil
}

func (s *ScoringService) computePercentage(ctx context.Context, condition *models.ScoringCondition, req ApplyEventRequest, pct, prev *int) (*eventOutcome, error) {
	if req.ReverseOnly {
		base, bonus, found, err := s.reversalFromLedger(ctx, req.StudentID, req.Type, req.Lesson)
		if err != nil {
			return nil, err
		}
		if !found && prev != nil {
			base = -evaluateRange(condition.Rules, *prev)
		}
		return &eventOutcome{base: base, bonus: bonus}, nil
	}

	if pct == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "percentage required")
	}

	// Zero percentage is the "never attempted" sentinel: its own rule value
	// applies only when there is no prior state, and a prior positive state
	// is reversed without stacking the sentinel's penalty on top. A prior
	// zero is never treated as a real penalty to reverse.
	var base int
	switch {
	case *pct == 0 && prev == nil:
		base = evaluateRange(condition.Rules, 0)
	case *pct == 0 && *prev > 0:
		base = -evaluateRange(condition.Rules, *prev)
	case *pct == 0:
		base = 0
	default:
		base = evaluateRange(condition.Rules, *pct)
		if prev != nil && *prev > 0 {
			base -= evaluateRange(condition.Rules, *prev)
		}
	}

	outcome := &eventOutcome{base: base}
	if len(condition.BonusRules) > 0 {
		if *pct > 0 {
			award, err := s.detectBonus(ctx, condition, req)
			if err != nil {
				return nil, err
			}
			outcome.bonus = award.Points
			outcome.bonusLessons = award.Lessons
		}
		if prev != nil {
			// Grade edit: whatever bonus the lesson still holds on the
			// ledger is superseded, withdraw it before awarding the new
			// state. Netting against the ledgered sum keeps an edit chain
			// (e.g. full marks, zeroed out, full marks again) paying the
			// streak exactly once.
			prior, err := s.bonusOnRecord(ctx, req.StudentID, req.Type, req.Lesson)
			if err != nil {
				return nil, err
			}
			outcome.bonus -= prior
		}
	}
	return outcome, nil
}

func (s *ScoringService) computeHomeworkStatus(ctx context.Context, condition *models.ScoringCondition, req ApplyEventRequest) (*eventOutcome, error) {
	payload := req.Homework

	if req.ReverseOnly {
		base, bonus, found, err := s.reversalFromLedger(ctx, req.StudentID, req.Type, req.Lesson)
		if err != nil {
			return nil, err
		}
		if !found && payload.PreviousDone != nil {
			base = -evaluateMatch(condition.Rules, string(*payload.PreviousDone))
		}
		return &eventOutcome{base: base, bonus: bonus}, nil
	}

	if payload.Done == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "homework status required")
	}

	// "Not completed" with no prior record means the homework never
	// happened; there is nothing to penalize or reverse.
	if *payload.Done == models.HomeworkNotCompleted && payload.PreviousDone == nil {
		return &eventOutcome{}, nil
	}

	base := evaluateMatch(condition.Rules, string(*payload.Done))
	if payload.PreviousDone != nil {
		base -= evaluateMatch(condition.Rules, string(*payload.PreviousDone))
	}
	return &eventOutcome{base: base}, nil
}

// reversalFromLedger sources the previously applied points for a reversal.
// The ledger entry's base_points is preferred because it captures exactly
// what was applied even if rules have since changed; score_added is the
// fallback for rows that predate the base/bonus split.
func (s *ScoringService) reversalFromLedger(ctx context.Context, studentID string, t models.EventType, lesson string) (base, bonus int, found bool, err error) {
	entry, err := s.ledger.Last(ctx, studentID, t, lesson)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read ledger")
	}
	base = entry.BasePoints
	if base == 0 && entry.BonusPoints == 0 && entry.ScoreAdded != 0 {
		base = entry.ScoreAdded
	}
	return -base, -entry.BonusPoints, true, nil
}

// bonusOnRecord returns the net bonus points a lesson currently holds on the
// ledger. Strictly lesson-scoped: an edit must never withdraw a bonus that
// another lesson earned, so unlike Last there is no unscoped fallback.
func (s *ScoringService) bonusOnRecord(ctx context.Context, studentID string, t models.EventType, lesson string) (int, error) {
	if lesson == "" {
		return 0, nil
	}
	total, err := s.ledger.BonusOnRecord(ctx, studentID, t, lesson)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read ledger")
	}
	return total, nil
}

func (s *ScoringService) detectBonus(ctx context.Context, condition *models.ScoringCondition, req ApplyEventRequest) (BonusAward, error) {
	curriculum, err := s.curricula.Active(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BonusAward{}, appErrors.Clone(appErrors.ErrCurriculumMissing, "")
		}
		return BonusAward{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}

	records, err := s.students.LessonRecords(ctx, req.StudentID)
	if err != nil {
		return BonusAward{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson records")
	}
	submissions, err := s.students.Submissions(ctx, req.StudentID, req.Type)
	if err != nil {
		return BonusAward{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}

	percentages := buildPercentageMap(records, submissions, req.Type)
	overlayCurrentEvent(percentages, req)
	return detectStreaks(condition.BonusRules, percentages, curriculum, req.Lesson), nil
}

// overlayCurrentEvent folds the incoming percentage into the map so a streak
// completed by this very event is visible before the stores catch up.
func overlayCurrentEvent(percentages map[string]int, req ApplyEventRequest) {
	if req.Lesson == "" {
		return
	}
	var pct *int
	switch req.Type {
	case models.EventHomework:
		if req.Homework != nil {
			pct = req.Homework.Percentage
		}
	case models.EventQuiz:
		if req.Quiz != nil {
			pct = req.Quiz.Percentage
		}
	case models.EventMockExam:
		if req.MockExam != nil {
			pct = req.MockExam.Percentage
		}
	}
	if pct != nil {
		percentages[req.Lesson] = *pct
	}
}

func (s *ScoringService) collectCascades(ctx context.Context, req ApplyEventRequest) ([]cascadeReversal, error) {
	targets := cascadeTargets[req.Type]
	if len(targets) == 0 || req.Lesson == "" {
		return nil, nil
	}
	var cascades []cascadeReversal
	for _, target := range targets {
		entry, err := s.ledger.Last(ctx, req.StudentID, target, req.Lesson)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read ledger for cascade")
		}
		if entry.BasePoints == 0 {
			continue
		}
		cascades = append(cascades, cascadeReversal{
			eventType: target,
			base:      -entry.BasePoints,
			bonus:     -entry.BonusPoints,
			lessons:   entry.BonusLessons,
		})
	}
	return cascades, nil
}

// buildEntries materializes the ledger rows for an event, chaining
// score_before/score_after through the primary delta and each cascade, with
// the zero floor applied after every step.
func (s *ScoringService) buildEntries(req ApplyEventRequest, scoreBefore int, processID string, outcome *eventOutcome) ([]models.HistoryEntry, int) {
	now := time.Now().UTC()
	data, _ := json.Marshal(req)

	var lesson *string
	if req.Lesson != "" {
		l := req.Lesson
		lesson = &l
	}

	running := scoreBefore
	after := clampFloor(running + outcome.base + outcome.bonus)
	entries := []models.HistoryEntry{{
		StudentID:     req.StudentID,
		ProcessID:     processID,
		ProcessLesson: lesson,
		Type:          req.Type,
		Data:          data,
		ScoreBefore:   running,
		ScoreAdded:    after - running,
		ScoreAfter:    after,
		BasePoints:    outcome.base,
		BonusPoints:   outcome.bonus,
		BonusLessons:  outcome.bonusLessons,
		CreatedAt:     now,
	}}
	running = after

	for i, cascade := range outcome.cascades {
		after = clampFloor(running + cascade.base + cascade.bonus)
		cascadeData, _ := json.Marshal(map[string]interface{}{
			"reverse_only":  true,
			"cascaded_from": processID,
		})
		entries = append(entries, models.HistoryEntry{
			StudentID:     req.StudentID,
			ProcessID:     uuid.NewString(),
			ProcessLesson: lesson,
			Type:          cascade.eventType,
			Data:          cascadeData,
			ScoreBefore:   running,
			ScoreAdded:    after - running,
			ScoreAfter:    after,
			BasePoints:    cascade.base,
			BonusPoints:   cascade.bonus,
			BonusLessons:  cascade.lessons,
			CreatedAt:     now.Add(time.Duration(i+1) * time.Millisecond),
		})
		running = after
	}

	return entries, running
}

func (s *ScoringService) studentLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func totalDelta(outcome *eventOutcome) int {
	total := outcome.base + outcome.bonus
	for _, cascade := range outcome.cascades {
		total += cascade.base + cascade.bonus
	}
	return total
}

func clampFloor(score int) int {
	if score < 0 {
		return 0
	}
	return score
}

func validatePayload(req ApplyEventRequest) error {
	switch req.Type {
	case models.EventAttendance:
		if req.Attendance == nil {
			return appErrors.Clone(appErrors.ErrValidation, "attendance payload required")
		}
		if !req.ReverseOnly && req.Attendance.Status == "" {
			return appErrors.Clone(appErrors.ErrValidation, "attendance status required")
		}
	case models.EventHomework:
		if req.Homework == nil {
			return appErrors.Clone(appErrors.ErrValidation, "homework payload required")
		}
	case models.EventQuiz:
		if req.Quiz == nil {
			return appErrors.Clone(appErrors.ErrValidation, "quiz payload required")
		}
	case models.EventMockExam:
		if req.MockExam == nil {
			return appErrors.Clone(appErrors.ErrValidation, "mock exam payload required")
		}
	}
	return nil
}
