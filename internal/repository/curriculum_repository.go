package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/scoring-api/internal/models"
)

const curriculumCacheKey = "scoring:curriculum:active"

// CurriculumRepository reads the versioned ordered lesson list that defines
// streak adjacency.
type CurriculumRepository struct {
	db    *sqlx.DB
	cache *CacheRepository
	ttl   time.Duration
}

// NewCurriculumRepository constructs a curriculum repository.
func NewCurriculumRepository(db *sqlx.DB, cache *CacheRepository, ttl time.Duration) *CurriculumRepository {
	return &CurriculumRepository{db: db, cache: cache, ttl: ttl}
}

// Active returns the currently active curriculum. When several versions are
// active the newest wins.
func (r *CurriculumRepository) Active(ctx context.Context) (*models.Curriculum, error) {
	var cached models.Curriculum
	if r.cache != nil {
		if err := r.cache.Get(ctx, curriculumCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	const query = `SELECT id, version, active, lessons, created_at
        FROM curricula WHERE active = true ORDER BY version DESC LIMIT 1`
	var curriculum models.Curriculum
	if err := r.db.GetContext(ctx, &curriculum, query); err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(ctx, curriculumCacheKey, curriculum, r.ttl)
	}
	return &curriculum, nil
}

// InvalidateCache drops the cached active curriculum, for callers that just
// published a new version.
func (r *CurriculumRepository) InvalidateCache(ctx context.Context) {
	if r.cache == nil {
		return
	}
	r.cache.Invalidate(ctx, curriculumCacheKey)
}
