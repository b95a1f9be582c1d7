package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tutorhub/scoring-api/internal/models"
	appErrors "github.com/tutorhub/scoring-api/pkg/errors"
	"github.com/tutorhub/scoring-api/pkg/export"
	"github.com/tutorhub/scoring-api/pkg/response"
)

type ledgerBrowser interface {
	List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, *models.Pagination, error)
	Statement(ctx context.Context, studentID string) (*export.Statement, error)
}

// HistoryHandler exposes a student's ledger: paginated listings and
// downloadable statements.
type HistoryHandler struct {
	history ledgerBrowser
}

// NewHistoryHandler constructs handler.
func NewHistoryHandler(history ledgerBrowser) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List godoc
// @Summary List a student's ledger entries
// @Tags History
// @Produce json
// @Param id path string true "Student id"
// @Param type query string false "Filter by event type"
// @Param lesson query string false "Filter by lesson"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /scoring/students/{id}/history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	filter := models.HistoryFilter{
		StudentID: c.Param("id"),
		Type:      models.EventType(c.Query("type")),
		Lesson:    c.Query("lesson"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 50),
	}
	entries, pagination, err := h.history.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Statement godoc
// @Summary Download a student's score statement
// @Tags History
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student id"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /scoring/students/{id}/statement [get]
func (h *HistoryHandler) Statement(c *gin.Context) {
	st, err := h.history.Statement(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	format := c.DefaultQuery("format", "csv")
	var (
		body     []byte
		mimeType string
	)
	switch format {
	case "csv":
		body, err = export.RenderCSV(*st)
		mimeType = "text/csv"
	case "pdf":
		body, err = export.RenderPDF(*st)
		mimeType = "application/pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement"))
		return
	}

	filename := fmt.Sprintf("statement-%s.%s", st.StudentID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, mimeType, body)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
