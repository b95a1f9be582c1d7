package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tutorhub/scoring-api/internal/models"
	"github.com/tutorhub/scoring-api/internal/service"
	appErrors "github.com/tutorhub/scoring-api/pkg/errors"
	"github.com/tutorhub/scoring-api/pkg/response"
)

type eventApplier interface {
	Apply(ctx context.Context, req service.ApplyEventRequest) (*service.ApplyEventResult, error)
}

type lastEntryReader interface {
	Last(ctx context.Context, studentID string, t models.EventType, lesson string) (*models.HistoryEntry, error)
}

// ScoringHandler exposes the event ingestion endpoint and the last-entry
// lookup used by collaborators to decide reversals.
type ScoringHandler struct {
	scoring eventApplier
	history lastEntryReader
}

// NewScoringHandler constructs handler.
func NewScoringHandler(scoring eventApplier, history lastEntryReader) *ScoringHandler {
	return &ScoringHandler{scoring: scoring, history: history}
}

// ApplyEvent godoc
// @Summary Apply a scoring event
// @Tags Scoring
// @Accept json
// @Produce json
// @Param payload body service.ApplyEventRequest true "Scoring event"
// @Success 200 {object} response.Envelope
// @Router /scoring/events [post]
func (h *ScoringHandler) ApplyEvent(c *gin.Context) {
	var req service.ApplyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.scoring.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// LastEntry godoc
// @Summary Latest ledger entry for a student and event type
// @Tags Scoring
// @Produce json
// @Param studentId query string true "Student id"
// @Param type query string true "Event type"
// @Param lesson query string false "Scope to a lesson"
// @Success 200 {object} response.Envelope
// @Router /scoring/history/last [get]
func (h *ScoringHandler) LastEntry(c *gin.Context) {
	entry, err := h.history.Last(c.Request.Context(),
		c.Query("studentId"), models.EventType(c.Query("type")), c.Query("lesson"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
