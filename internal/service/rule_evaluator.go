package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/tutorhub/scoring-api/internal/models"
)

// Rule evaluation is pure and total: the first matching rule in configured
// order wins, and no match yields zero. Out-of-domain input never errors.

// evaluateMatch returns the points of the first rule whose match key equals
// the given key.
func evaluateMatch(rules models.PointRules, key string) int {
	for _, rule := range rules {
		if rule.Match != "" && rule.Match == key {
			return rule.Points
		}
	}
	return 0
}

// evaluateRange returns the points of the first rule whose inclusive
// [min, max] range contains the percentage. A percentage equal to a bound
// matches that rule.
func evaluateRange(rules models.PointRules, percentage int) int {
	for _, rule := range rules {
		if rule.Min == nil || rule.Max == nil {
			continue
		}
		if percentage >= *rule.Min && percentage <= *rule.Max {
			return rule.Points
		}
	}
	return 0
}

// parseDegree converts an "obtained/total" degree string such as "8/10"
// into a whole percentage. Malformed or zero-total degrees report !ok.
func parseDegree(degree string) (int, bool) {
	parts := strings.SplitN(degree, "/", 2)
	if len(parts) != 2 {
		return 0, false
	}
	obtained, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, false
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || total <= 0 {
		return 0, false
	}
	return int(math.Round(obtained / total * 100)), true
}
