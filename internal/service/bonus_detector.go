package service

import (
	"sort"

	"github.com/tutorhub/scoring-api/internal/models"
)

// BonusAward is the outcome of streak detection for one event: the summed
// bonus points and the deduplicated union of awarded lesson names.
type BonusAward struct {
	Points  int
	Lessons []string
}

// detectStreaks scans a student's per-lesson percentages against the bonus
// rules. For each rule it looks for the first run of LastN lessons that all
// scored exactly the rule's percentage and are consecutive in curriculum
// order. When focusLesson is non-empty the run must contain it, scoping the
// check to "did this event just complete a streak here". Each rule awards at
// most once per call.
func detectStreaks(rules models.BonusRules, percentages map[string]int, curriculum *models.Curriculum, focusLesson string) BonusAward {
	award := BonusAward{}
	if len(rules) == 0 || curriculum == nil || len(curriculum.Lessons) == 0 {
		return award
	}

	seen := make(map[string]bool)
	for _, rule := range rules {
		if rule.LastN <= 0 {
			continue
		}
		run := findRun(rule, percentages, curriculum, focusLesson)
		if run == nil {
			continue
		}
		award.Points += rule.Points
		for _, lesson := range run {
			if !seen[lesson] {
				seen[lesson] = true
				award.Lessons = append(award.Lessons, lesson)
			}
		}
	}
	return award
}

func findRun(rule models.BonusRule, percentages map[string]int, curriculum *models.Curriculum, focusLesson string) []string {
	// Candidates are curriculum positions of lessons matching the rule's
	// percentage exactly, ordered by curriculum index.
	var positions []int
	for lesson, pct := range percentages {
		if pct != rule.Percentage {
			continue
		}
		if idx := curriculum.IndexOf(lesson); idx >= 0 {
			positions = append(positions, idx)
		}
	}
	if len(positions) < rule.LastN {
		return nil
	}
	sort.Ints(positions)

	focusIdx := -1
	if focusLesson != "" {
		focusIdx = curriculum.IndexOf(focusLesson)
		if focusIdx < 0 {
			return nil
		}
	}

	for start := 0; start+rule.LastN <= len(positions); start++ {
		if !consecutive(positions[start : start+rule.LastN]) {
			continue
		}
		window := positions[start : start+rule.LastN]
		if focusIdx >= 0 && !contains(window, focusIdx) {
			continue
		}
		lessons := make([]string, 0, rule.LastN)
		for _, idx := range window {
			lessons = append(lessons, curriculum.Lessons[idx])
		}
		return lessons
	}
	return nil
}

func consecutive(positions []int) bool {
	for i := 1; i < len(positions); i++ {
		if positions[i] != positions[i-1]+1 {
			return false
		}
	}
	return true
}

func contains(positions []int, target int) bool {
	for _, p := range positions {
		if p == target {
			return true
		}
	}
	return false
}

// buildPercentageMap derives lessonName → percentage from lesson records
// (parsed degree strings) overlaid by online submissions for the event type.
// Submissions win when both exist, as they are the ground truth.
func buildPercentageMap(records []models.LessonRecord, submissions []models.Submission, t models.EventType) map[string]int {
	percentages := make(map[string]int, len(records))
	for _, record := range records {
		var degree *string
		switch t {
		case models.EventHomework:
			degree = record.HomeworkDegree
		case models.EventQuiz, models.EventMockExam:
			degree = record.QuizDegree
		}
		if degree == nil {
			continue
		}
		if pct, ok := parseDegree(*degree); ok {
			percentages[record.Lesson] = pct
		}
	}
	for _, sub := range submissions {
		if sub.EventType == t {
			percentages[sub.Lesson] = sub.Percentage
		}
	}
	return percentages
}
