package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tutorhub/scoring-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the scoring engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	eventsTotal      *prometheus.CounterVec
	commitConflicts  prometheus.Counter
	cascadeReversals prometheus.Counter
	clampedScores    prometheus.Counter
	bonusAwards      prometheus.Counter
	bonusPoints      prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	eventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scoring_events_total",
		Help: "Scoring events processed, by event type and mode",
	}, []string{"type", "mode"})

	commitConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scoring_commit_conflicts_total",
		Help: "Score compare-and-set conflicts that forced a recompute",
	})

	cascadeReversals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scoring_cascade_reversals_total",
		Help: "Dependent ledger entries reversed by upstream reversals",
	})

	clampedScores := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scoring_clamped_scores_total",
		Help: "Events whose applied delta was clamped at the zero floor",
	})

	bonusAwards := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scoring_bonus_awards_total",
		Help: "Events that changed a student's bonus points",
	})

	bonusPoints := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scoring_bonus_points_total",
		Help: "Net bonus points granted across all events",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, eventsTotal, commitConflicts,
		cascadeReversals, clampedScores, bonusAwards, bonusPoints, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		eventsTotal:      eventsTotal,
		commitConflicts:  commitConflicts,
		cascadeReversals: cascadeReversals,
		clampedScores:    clampedScores,
		bonusAwards:      bonusAwards,
		bonusPoints:      bonusPoints,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordEvent counts one processed scoring event.
func (m *MetricsService) RecordEvent(t models.EventType, reverseOnly bool) {
	if m == nil {
		return
	}
	mode := "apply"
	if reverseOnly {
		mode = "reverse"
	}
	m.eventsTotal.WithLabelValues(string(t), mode).Inc()
}

// RecordCommitConflict counts one stale-score retry.
func (m *MetricsService) RecordCommitConflict() {
	if m == nil {
		return
	}
	m.commitConflicts.Inc()
}

// RecordCascadeReversals counts dependent entries reversed by one event.
func (m *MetricsService) RecordCascadeReversals(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cascadeReversals.Add(float64(n))
}

// RecordClampedScore counts one event truncated by the zero floor.
func (m *MetricsService) RecordClampedScore() {
	if m == nil {
		return
	}
	m.clampedScores.Inc()
}

// RecordBonusAward counts one bonus-affecting event and its net points.
// Negative deltas (reversals, edits) still count the event but not points.
func (m *MetricsService) RecordBonusAward(points int) {
	if m == nil {
		return
	}
	m.bonusAwards.Inc()
	if points > 0 {
		m.bonusPoints.Add(float64(points))
	}
}
