package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tutorhub/scoring-api/pkg/response"
)

type cacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// CacheHandler lets collaborator services bust the configuration caches
// right after they change scoring conditions or publish a curriculum
// version, instead of waiting out the TTL.
type CacheHandler struct {
	conditions cacheInvalidator
	curricula  cacheInvalidator
}

// NewCacheHandler constructs handler.
func NewCacheHandler(conditions, curricula cacheInvalidator) *CacheHandler {
	return &CacheHandler{conditions: conditions, curricula: curricula}
}

// Refresh godoc
// @Summary Drop cached scoring conditions and curriculum
// @Tags Scoring
// @Success 204
// @Router /scoring/cache/refresh [post]
func (h *CacheHandler) Refresh(c *gin.Context) {
	if h.conditions != nil {
		h.conditions.InvalidateCache(c.Request.Context())
	}
	if h.curricula != nil {
		h.curricula.InvalidateCache(c.Request.Context())
	}
	response.NoContent(c)
}
