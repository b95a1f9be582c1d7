package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/scoring-api/internal/models"
	"github.com/tutorhub/scoring-api/internal/repository"
	"github.com/tutorhub/scoring-api/pkg/config"
	appErrors "github.com/tutorhub/scoring-api/pkg/errors"
)

type mockStudentStore struct {
	students    map[string]models.Student
	records     []models.LessonRecord
	submissions []models.Submission
}

func (m *mockStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := student
	return &copied, nil
}

func (m *mockStudentStore) LessonRecords(ctx context.Context, studentID string) ([]models.LessonRecord, error) {
	var result []models.LessonRecord
	for _, record := range m.records {
		if record.StudentID == studentID {
			result = append(result, record)
		}
	}
	return result, nil
}

func (m *mockStudentStore) Submissions(ctx context.Context, studentID string, t models.EventType) ([]models.Submission, error) {
	var result []models.Submission
	for _, sub := range m.submissions {
		if sub.StudentID == studentID && sub.EventType == t {
			result = append(result, sub)
		}
	}
	return result, nil
}

type mockConditionStore struct {
	conditions map[string]*models.ScoringCondition
}

func condKey(t models.EventType, withDegree *bool) string {
	if withDegree == nil {
		return string(t)
	}
	return fmt.Sprintf("%s|%t", t, *withDegree)
}

func (m *mockConditionStore) add(cond *models.ScoringCondition) {
	if m.conditions == nil {
		m.conditions = make(map[string]*models.ScoringCondition)
	}
	m.conditions[condKey(cond.Type, cond.WithDegree)] = cond
}

func (m *mockConditionStore) FindByType(ctx context.Context, t models.EventType, withDegree *bool) (*models.ScoringCondition, error) {
	if cond, ok := m.conditions[condKey(t, withDegree)]; ok {
		return cond, nil
	}
	return nil, sql.ErrNoRows
}

type mockCurriculumStore struct {
	curriculum *models.Curriculum
}

func (m *mockCurriculumStore) Active(ctx context.Context) (*models.Curriculum, error) {
	if m.curriculum == nil {
		return nil, sql.ErrNoRows
	}
	return m.curriculum, nil
}

type mockLedger struct {
	entries []models.HistoryEntry
}

func (m *mockLedger) Last(ctx context.Context, studentID string, t models.EventType, lesson string) (*models.HistoryEntry, error) {
	if lesson != "" {
		for i := len(m.entries) - 1; i >= 0; i-- {
			entry := m.entries[i]
			if entry.StudentID == studentID && entry.Type == t && entry.ProcessLesson != nil && *entry.ProcessLesson == lesson {
				return &entry, nil
			}
		}
	}
	for i := len(m.entries) - 1; i >= 0; i-- {
		entry := m.entries[i]
		if entry.StudentID == studentID && entry.Type == t {
			return &entry, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockLedger) BonusOnRecord(ctx context.Context, studentID string, t models.EventType, lesson string) (int, error) {
	total := 0
	for _, entry := range m.entries {
		if entry.StudentID == studentID && entry.Type == t && entry.ProcessLesson != nil && *entry.ProcessLesson == lesson {
			total += entry.BonusPoints
		}
	}
	return total, nil
}

type mockScoreStore struct {
	students       *mockStudentStore
	ledger         *mockLedger
	staleRemaining int
	commits        int
}

func (m *mockScoreStore) CommitScore(ctx context.Context, studentID string, expectedScore, newScore int, entries []models.HistoryEntry) error {
	m.commits++
	if m.staleRemaining > 0 {
		m.staleRemaining--
		return repository.ErrStaleScore
	}
	student, ok := m.students.students[studentID]
	if !ok || student.Score != expectedScore {
		return repository.ErrStaleScore
	}
	student.Score = newScore
	m.students.students[studentID] = student
	m.ledger.entries = append(m.ledger.entries, entries...)
	return nil
}

type scoringFixture struct {
	students   *mockStudentStore
	conditions *mockConditionStore
	curricula  *mockCurriculumStore
	ledger     *mockLedger
	scores     *mockScoreStore
	svc        *ScoringService
}

func newScoringFixture(cfg config.ScoringConfig) *scoringFixture {
	students := &mockStudentStore{students: map[string]models.Student{
		"s1": {ID: "s1", FullName: "Lina Hassan", Score: 0},
	}}
	conditions := &mockConditionStore{}
	curricula := &mockCurriculumStore{curriculum: &models.Curriculum{
		ID: "cur-1", Version: 1, Active: true,
		Lessons: pq.StringArray{"l1", "l2", "l3", "l4", "l5"},
	}}
	ledger := &mockLedger{}
	scores := &mockScoreStore{students: students, ledger: ledger}

	svc := NewScoringService(students, conditions, curricula, ledger, scores, cfg, nil, nil, nil)
	return &scoringFixture{
		students:   students,
		conditions: conditions,
		curricula:  curricula,
		ledger:     ledger,
		scores:     scores,
		svc:        svc,
	}
}

func defaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{Enabled: true, CommitRetries: 3}
}

func attendanceCondition() *models.ScoringCondition {
	return &models.ScoringCondition{
		ID:   "c-att",
		Type: models.EventAttendance,
		Rules: models.PointRules{
			{Match: models.AttendancePresent, Points: 10},
			{Match: models.AttendanceAbsent, Points: -10},
		},
	}
}

func percentageRules() models.PointRules {
	return models.PointRules{
		{Min: intPtr(85), Max: intPtr(100), Points: 20},
		{Min: intPtr(50), Max: intPtr(84), Points: 10},
		{Min: intPtr(1), Max: intPtr(49), Points: -5},
		{Min: intPtr(0), Max: intPtr(0), Points: -15},
	}
}

func homeworkDegreeCondition() *models.ScoringCondition {
	withDegree := true
	return &models.ScoringCondition{
		ID:         "c-hw-deg",
		Type:       models.EventHomework,
		WithDegree: &withDegree,
		Rules:      percentageRules(),
		BonusRules: models.BonusRules{{LastN: 3, Percentage: 100, Points: 15}},
	}
}

func homeworkStatusCondition() *models.ScoringCondition {
	withDegree := false
	return &models.ScoringCondition{
		ID:         "c-hw-status",
		Type:       models.EventHomework,
		WithDegree: &withDegree,
		Rules: models.PointRules{
			{Match: string(models.HomeworkDone), Points: 10},
			{Match: string(models.HomeworkNotCompleted), Points: -10},
			{Match: string(models.HomeworkNone), Points: 0},
		},
	}
}

func quizCondition() *models.ScoringCondition {
	return &models.ScoringCondition{
		ID:    "c-quiz",
		Type:  models.EventQuiz,
		Rules: percentageRules(),
	}
}

func setScore(f *scoringFixture, id string, score int) {
	student := f.students.students[id]
	student.Score = score
	f.students.students[id] = student
}

func TestApplyAttendanceThenReverse(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(attendanceCondition())
	ctx := context.Background()

	result, err := f.svc.Apply(ctx, ApplyEventRequest{
		StudentID:  "s1",
		Type:       models.EventAttendance,
		Lesson:     "l1",
		Attendance: &models.AttendancePayload{Status: models.AttendancePresent},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, result.PointsAdded)
	assert.Equal(t, 0, result.PreviousScore)
	assert.Equal(t, 10, result.NewScore)
	require.NotNil(t, result.ProcessID)

	require.Len(t, f.ledger.entries, 1)
	entry := f.ledger.entries[0]
	assert.Equal(t, 10, entry.BasePoints)
	assert.Equal(t, 0, entry.BonusPoints)
	assert.Equal(t, 0, entry.ScoreBefore)
	assert.Equal(t, 10, entry.ScoreAfter)

	reversed, err := f.svc.Apply(ctx, ApplyEventRequest{
		StudentID:   "s1",
		Type:        models.EventAttendance,
		Lesson:      "l1",
		ReverseOnly: true,
		Attendance:  &models.AttendancePayload{},
	})
	require.NoError(t, err)
	assert.Equal(t, -10, reversed.PointsAdded, "reversal negates exactly the ledgered points")
	assert.Equal(t, 0, reversed.NewScore)
}

func TestApplyAttendanceStatusEdit(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(attendanceCondition())
	setScore(f, "s1", 30)

	previous := models.AttendancePresent
	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventAttendance,
		Lesson:    "l1",
		Attendance: &models.AttendancePayload{
			Status:         models.AttendanceAbsent,
			PreviousStatus: &previous,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, -20, result.PointsAdded, "edit applies the new mark and reverses the old one")
	assert.Equal(t, 10, result.NewScore)
}

func TestHomeworkDegreeApplyAndEdit(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(homeworkDegreeCondition())
	setScore(f, "s1", 100)
	ctx := context.Background()

	result, err := f.svc.Apply(ctx, ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l1",
		Homework:  &models.HomeworkPayload{Percentage: intPtr(90)},
	})
	require.NoError(t, err)
	assert.Equal(t, 20, result.BasePoints)
	assert.Equal(t, 120, result.NewScore)

	edited, err := f.svc.Apply(ctx, ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l1",
		Homework: &models.HomeworkPayload{
			Percentage:         intPtr(40),
			PreviousPercentage: intPtr(90),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, -25, edited.PointsAdded, "edit nets new band against previous band")
	assert.Equal(t, 95, edited.NewScore)
}

func TestQuizZeroSentinel(t *testing.T) {
	tests := []struct {
		name     string
		previous *int
		want     int
	}{
		{name: "first report applies the zero band", previous: nil, want: -15},
		{name: "clearing a positive grade reverses it without stacking", previous: intPtr(50), want: -10},
		{name: "zero over zero is a no-op", previous: intPtr(0), want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newScoringFixture(defaultScoringConfig())
			f.conditions.add(quizCondition())
			setScore(f, "s1", 50)

			result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
				StudentID: "s1",
				Type:      models.EventQuiz,
				Lesson:    "l2",
				Quiz:      &models.QuizPayload{Percentage: intPtr(0), PreviousPercentage: tc.previous},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.PointsAdded)
			assert.Equal(t, 50+tc.want, result.NewScore)
		})
	}
}

func TestScoreClampedAtZero(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(quizCondition())
	setScore(f, "s1", 5)

	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventQuiz,
		Lesson:    "l2",
		Quiz:      &models.QuizPayload{Percentage: intPtr(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, -15, result.BasePoints, "the semantic delta is recorded in full")
	assert.Equal(t, -5, result.PointsAdded, "the applied delta stops at the floor")
	assert.Equal(t, 0, result.NewScore)

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, -5, f.ledger.entries[0].ScoreAdded)
	assert.Equal(t, -15, f.ledger.entries[0].BasePoints)
}

func TestBonusStreakAwarded(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(homeworkDegreeCondition())
	degree := "10/10"
	f.students.records = []models.LessonRecord{
		{StudentID: "s1", Lesson: "l1", HomeworkDegree: &degree},
		{StudentID: "s1", Lesson: "l2", HomeworkDegree: &degree},
	}

	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l3",
		Homework:  &models.HomeworkPayload{Percentage: intPtr(100)},
	})
	require.NoError(t, err)
	assert.Equal(t, 20, result.BasePoints)
	assert.Equal(t, 15, result.BonusPoints, "the incoming grade completes the three-lesson streak")
	assert.Equal(t, []string{"l1", "l2", "l3"}, result.BonusLessons)
	assert.Equal(t, 35, result.NewScore)

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, 15, f.ledger.entries[0].BonusPoints)
	assert.Equal(t, pq.StringArray([]string{"l1", "l2", "l3"}), f.ledger.entries[0].BonusLessons)
}

func TestEditNetsPriorBonus(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(homeworkDegreeCondition())
	setScore(f, "s1", 100)
	degree := "10/10"
	f.students.records = []models.LessonRecord{
		{StudentID: "s1", Lesson: "l1", HomeworkDegree: &degree},
		{StudentID: "s1", Lesson: "l2", HomeworkDegree: &degree},
	}
	lesson := "l3"
	f.ledger.entries = []models.HistoryEntry{{
		StudentID:     "s1",
		ProcessID:     "p-prior",
		ProcessLesson: &lesson,
		Type:          models.EventHomework,
		BasePoints:    20,
		BonusPoints:   15,
	}}

	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l3",
		Homework: &models.HomeworkPayload{
			Percentage:         intPtr(80),
			PreviousPercentage: intPtr(100),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, -10, result.BasePoints, "band moved from top to middle")
	assert.Equal(t, -15, result.BonusPoints, "the superseded bonus is withdrawn, not re-awarded")
	assert.Equal(t, 75, result.NewScore)
}

func TestEditToZeroWithdrawsPriorBonus(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(homeworkDegreeCondition())
	setScore(f, "s1", 100)
	lesson := "l3"
	f.ledger.entries = []models.HistoryEntry{{
		StudentID:     "s1",
		ProcessID:     "p-prior",
		ProcessLesson: &lesson,
		Type:          models.EventHomework,
		BasePoints:    20,
		BonusPoints:   15,
	}}

	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l3",
		Homework: &models.HomeworkPayload{
			Percentage:         intPtr(0),
			PreviousPercentage: intPtr(100),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, -20, result.BasePoints, "the previous band is reversed without stacking the zero penalty")
	assert.Equal(t, -15, result.BonusPoints, "zeroing the grade withdraws the bonus it had earned")
	assert.Equal(t, -35, result.PointsAdded)
	assert.Equal(t, 65, result.NewScore)
}

func TestBonusPaidOnceAcrossZeroEditChain(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(homeworkDegreeCondition())
	degree := "10/10"
	f.students.records = []models.LessonRecord{
		{StudentID: "s1", Lesson: "l1", HomeworkDegree: &degree},
		{StudentID: "s1", Lesson: "l2", HomeworkDegree: &degree},
	}
	ctx := context.Background()

	applied, err := f.svc.Apply(ctx, ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l3",
		Homework:  &models.HomeworkPayload{Percentage: intPtr(100)},
	})
	require.NoError(t, err)
	assert.Equal(t, 15, applied.BonusPoints)
	assert.Equal(t, 35, applied.NewScore)

	zeroed, err := f.svc.Apply(ctx, ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l3",
		Homework: &models.HomeworkPayload{
			Percentage:         intPtr(0),
			PreviousPercentage: intPtr(100),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, -15, zeroed.BonusPoints)
	assert.Equal(t, 0, zeroed.NewScore)

	restored, err := f.svc.Apply(ctx, ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l3",
		Homework: &models.HomeworkPayload{
			Percentage:         intPtr(100),
			PreviousPercentage: intPtr(0),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 15, restored.BonusPoints, "restoring the grade re-awards against the withdrawn bonus, not on top of the original")
	assert.Equal(t, 35, restored.NewScore)

	netBonus := 0
	for _, entry := range f.ledger.entries {
		netBonus += entry.BonusPoints
	}
	assert.Equal(t, 15, netBonus, "the streak is paid exactly once over the whole edit chain")
}

func TestEditLeavesOtherLessonsBonusAlone(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(homeworkDegreeCondition())
	setScore(f, "s1", 100)
	bonusLesson := "l3"
	f.ledger.entries = []models.HistoryEntry{{
		StudentID:     "s1",
		ProcessID:     "p-prior",
		ProcessLesson: &bonusLesson,
		Type:          models.EventHomework,
		BasePoints:    20,
		BonusPoints:   15,
	}}

	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l4",
		Homework: &models.HomeworkPayload{
			Percentage:         intPtr(80),
			PreviousPercentage: intPtr(90),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, -10, result.BasePoints)
	assert.Equal(t, 0, result.BonusPoints, "an edit on one lesson never touches a bonus another lesson earned")
	assert.Equal(t, 90, result.NewScore)
}

func TestAttendanceReversalCascades(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(attendanceCondition())
	setScore(f, "s1", 50)
	lesson := "l1"
	f.ledger.entries = []models.HistoryEntry{
		{StudentID: "s1", ProcessID: "p1", ProcessLesson: &lesson, Type: models.EventAttendance, BasePoints: 10},
		{StudentID: "s1", ProcessID: "p2", ProcessLesson: &lesson, Type: models.EventHomework, BasePoints: 20, BonusPoints: 15, BonusLessons: pq.StringArray{"l1"}},
		{StudentID: "s1", ProcessID: "p3", ProcessLesson: &lesson, Type: models.EventQuiz, BasePoints: 5},
	}

	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID:   "s1",
		Type:        models.EventAttendance,
		Lesson:      "l1",
		ReverseOnly: true,
		Attendance:  &models.AttendancePayload{},
	})
	require.NoError(t, err)
	assert.Equal(t, -50, result.PointsAdded)
	assert.Equal(t, 0, result.NewScore)

	appended := f.ledger.entries[3:]
	require.Len(t, appended, 3, "one primary reversal plus one cascade per dependent entry")
	assert.Equal(t, models.EventAttendance, appended[0].Type)
	assert.Equal(t, -10, appended[0].BasePoints)
	assert.Equal(t, 50, appended[0].ScoreBefore)
	assert.Equal(t, 40, appended[0].ScoreAfter)

	assert.Equal(t, models.EventHomework, appended[1].Type)
	assert.Equal(t, -20, appended[1].BasePoints)
	assert.Equal(t, -15, appended[1].BonusPoints)
	assert.Equal(t, 40, appended[1].ScoreBefore)
	assert.Equal(t, 5, appended[1].ScoreAfter)

	assert.Equal(t, models.EventQuiz, appended[2].Type)
	assert.Equal(t, -5, appended[2].BasePoints)
	assert.Equal(t, 0, appended[2].ScoreAfter)
}

func TestScoringDisabledIsNoOp(t *testing.T) {
	f := newScoringFixture(config.ScoringConfig{Enabled: false, CommitRetries: 3})
	f.conditions.add(attendanceCondition())
	setScore(f, "s1", 40)

	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID:  "s1",
		Type:       models.EventAttendance,
		Lesson:     "l1",
		Attendance: &models.AttendancePayload{Status: models.AttendancePresent},
	})
	require.NoError(t, err)
	assert.Nil(t, result.ProcessID)
	assert.Equal(t, 0, result.PointsAdded)
	assert.Equal(t, 40, result.NewScore)
	assert.Empty(t, f.ledger.entries)
	assert.Zero(t, f.scores.commits)
}

func TestMissingConditionFailsLoudly(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())

	_, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventQuiz,
		Lesson:    "l1",
		Quiz:      &models.QuizPayload{Percentage: intPtr(80)},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConditionMissing))
	assert.Empty(t, f.ledger.entries)
}

func TestStaleScoreRetriesWholeCycle(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(attendanceCondition())
	f.scores.staleRemaining = 2

	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID:  "s1",
		Type:       models.EventAttendance,
		Lesson:     "l1",
		Attendance: &models.AttendancePayload{Status: models.AttendancePresent},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, result.NewScore)
	assert.Equal(t, 3, f.scores.commits, "two stale rounds then one clean commit")
}

func TestStaleScoreRetriesExhausted(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(attendanceCondition())
	f.scores.staleRemaining = 100

	_, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID:  "s1",
		Type:       models.EventAttendance,
		Lesson:     "l1",
		Attendance: &models.AttendancePayload{Status: models.AttendancePresent},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, 4, f.scores.commits, "initial attempt plus configured retries")
}

func TestReverseFallsBackToPreviousPayload(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(attendanceCondition())
	setScore(f, "s1", 20)

	previous := models.AttendancePresent
	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID:   "s1",
		Type:        models.EventAttendance,
		Lesson:      "l1",
		ReverseOnly: true,
		Attendance:  &models.AttendancePayload{PreviousStatus: &previous},
	})
	require.NoError(t, err)
	assert.Equal(t, -10, result.PointsAdded, "with no ledger entry the previous payload is re-evaluated")
	assert.Equal(t, 10, result.NewScore)
}

func TestReverseHomeworkWithoutStatusVariantConfigured(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(homeworkDegreeCondition())
	setScore(f, "s1", 50)
	lesson := "l1"
	f.ledger.entries = []models.HistoryEntry{{
		StudentID:     "s1",
		ProcessID:     "p-prior",
		ProcessLesson: &lesson,
		Type:          models.EventHomework,
		BasePoints:    20,
	}}

	// An empty reversal payload carries no grading-variant hint, so the
	// condition lookup cannot resolve one. The ledger already knows what was
	// applied; a missing variant row must not block the reversal.
	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID:   "s1",
		Type:        models.EventHomework,
		Lesson:      "l1",
		ReverseOnly: true,
		Homework:    &models.HomeworkPayload{},
	})
	require.NoError(t, err)
	assert.Equal(t, -20, result.PointsAdded)
	assert.Equal(t, 30, result.NewScore)
}

func TestReverseWithNothingToReverse(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(attendanceCondition())
	setScore(f, "s1", 20)

	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID:   "s1",
		Type:        models.EventAttendance,
		Lesson:      "l1",
		ReverseOnly: true,
		Attendance:  &models.AttendancePayload{},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.PointsAdded)
	assert.Equal(t, 20, result.NewScore)
}

func TestHomeworkStatusVariant(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(homeworkStatusCondition())
	ctx := context.Background()

	done := models.HomeworkDone
	notCompleted := models.HomeworkNotCompleted

	result, err := f.svc.Apply(ctx, ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l1",
		Homework:  &models.HomeworkPayload{Done: &done},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, result.PointsAdded)

	edited, err := f.svc.Apply(ctx, ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l1",
		Homework:  &models.HomeworkPayload{Done: &notCompleted, PreviousDone: &done},
	})
	require.NoError(t, err)
	assert.Equal(t, -20, edited.PointsAdded)
	assert.Equal(t, 0, edited.NewScore)
}

func TestHomeworkNotCompletedFirstReportIsNeutral(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(homeworkStatusCondition())
	setScore(f, "s1", 30)

	notCompleted := models.HomeworkNotCompleted
	result, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID: "s1",
		Type:      models.EventHomework,
		Lesson:    "l1",
		Homework:  &models.HomeworkPayload{Done: &notCompleted},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.PointsAdded, "a first not-completed report has nothing to penalize")
	assert.Equal(t, 30, result.NewScore)
}

func TestApplyUnknownStudent(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(attendanceCondition())

	_, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID:  "ghost",
		Type:       models.EventAttendance,
		Attendance: &models.AttendancePayload{Status: models.AttendancePresent},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestApplyRejectsMismatchedPayload(t *testing.T) {
	f := newScoringFixture(defaultScoringConfig())
	f.conditions.add(quizCondition())

	_, err := f.svc.Apply(context.Background(), ApplyEventRequest{
		StudentID:  "s1",
		Type:       models.EventQuiz,
		Attendance: &models.AttendancePayload{Status: models.AttendancePresent},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
