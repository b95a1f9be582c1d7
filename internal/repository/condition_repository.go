package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/scoring-api/internal/models"
)

// ConditionRepository reads scoring conditions, with a read-through cache in
// front of PostgreSQL. Conditions are immutable configuration from the
// engine's point of view.
type ConditionRepository struct {
	db    *sqlx.DB
	cache *CacheRepository
	ttl   time.Duration
}

// NewConditionRepository constructs a condition repository.
func NewConditionRepository(db *sqlx.DB, cache *CacheRepository, ttl time.Duration) *ConditionRepository {
	return &ConditionRepository{db: db, cache: cache, ttl: ttl}
}

// FindByType returns the condition for an event type variant. For homework
// the withDegree flag selects the percentage-graded or status-graded row;
// other event types carry a single variant (withDegree nil).
// A missing row surfaces as sql.ErrNoRows so callers can treat it as the
// hard misconfiguration it is.
func (r *ConditionRepository) FindByType(ctx context.Context, t models.EventType, withDegree *bool) (*models.ScoringCondition, error) {
	key := conditionCacheKey(t, withDegree)
	var cached models.ScoringCondition
	if r.cache != nil {
		if err := r.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	const base = `SELECT id, event_type, with_degree, rules, bonus_rules, created_at, updated_at
        FROM scoring_conditions WHERE event_type = $1`
	var condition models.ScoringCondition
	var err error
	if withDegree == nil {
		err = r.db.GetContext(ctx, &condition, base+" AND with_degree IS NULL", t)
	} else {
		err = r.db.GetContext(ctx, &condition, base+" AND with_degree = $2", t, *withDegree)
	}
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(ctx, key, condition, r.ttl)
	}
	return &condition, nil
}

// InvalidateCache drops every cached condition variant so the next lookup
// rereads the table. Collaborator services call this after editing rules,
// instead of waiting out the TTL.
func (r *ConditionRepository) InvalidateCache(ctx context.Context) {
	if r.cache == nil {
		return
	}
	for _, t := range []models.EventType{models.EventAttendance, models.EventHomework, models.EventQuiz, models.EventMockExam} {
		r.cache.Invalidate(ctx, conditionCacheKey(t, nil))
		for _, withDegree := range []bool{true, false} {
			v := withDegree
			r.cache.Invalidate(ctx, conditionCacheKey(t, &v))
		}
	}
}

func conditionCacheKey(t models.EventType, withDegree *bool) string {
	variant := "default"
	if withDegree != nil {
		variant = fmt.Sprintf("degree=%t", *withDegree)
	}
	return fmt.Sprintf("scoring:condition:%s:%s", t, variant)
}
