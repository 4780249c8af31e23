// Package httpapi serves the candidate view and mutation API alongside the
// health, readiness and metrics endpoints.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/common/metrics"
	"recruit-pipeline/internal/models"
)

type Service interface {
	GetCandidateView(ctx context.Context, q models.ViewQuery) (*models.CandidateView, error)
	ApplyMutation(ctx context.Context, cmd models.Command) (*models.MutationResult, error)
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	service Service
	checks  map[string]ReadinessCheck
	logger  logger.Logger
}

type Option func(*Handler)

// WithReadinessCheck adds a dependency probed by /ready.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(h *Handler) { h.checks[name] = check }
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(service Service, log logger.Logger, opts ...Option) *gin.Engine {
	h := &Handler{
		service: service,
		checks:  make(map[string]ReadinessCheck),
		logger:  log.Named("httpapi"),
	}
	for _, opt := range opts {
		opt(h)
	}

	router := gin.New()
	router.Use(gin.Recovery(), h.observe())

	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.GET("/candidates/:candidateId/view", h.GetView)
	v1.POST("/candidates/:candidateId/view", h.PostView)
	v1.POST("/mutations", h.ApplyMutation)

	return router
}

func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		if route == "/metrics" || route == "/health" {
			return
		}
		h.logger.Debug("request served", map[string]interface{}{
			"method":      c.Request.Method,
			"route":       route,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetView reads the view for the candidate in the path. Other identity
// fields may be given as query parameters.
func (h *Handler) GetView(c *gin.Context) {
	ref := models.CandidateRef{
		CandidateID: c.Param("candidateId"),
		StorageID:   c.Query("storageId"),
		JobID:       c.Query("jobId"),
		Name:        c.Query("name"),
		Email:       c.Query("email"),
	}
	h.view(c, models.ViewQuery{Candidate: ref})
}

// PostView reads the view with a candidate document supplied in the body.
func (h *Handler) PostView(c *gin.Context) {
	var q models.ViewQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		h.writeError(c, apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if id := c.Param("candidateId"); id != "" && id != "-" {
		q.Candidate.CandidateID = id
	}
	h.view(c, q)
}

func (h *Handler) view(c *gin.Context, q models.ViewQuery) {
	view, err := h.service.GetCandidateView(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ApplyMutation(c *gin.Context) {
	var cmd models.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		h.writeError(c, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	result, err := h.service.ApplyMutation(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	stdErr := apperrors.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed", map[string]interface{}{
			"route": c.FullPath(),
			"code":  string(stdErr.Code),
		})
	}
	c.JSON(status, gin.H{"error": stdErr})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInvalidMutation,
		apperrors.ErrCodeInvalidQuery,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeIllegalTransition:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnsupportedOperation:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeProvisionInProgress:
		return http.StatusConflict
	case apperrors.ErrCodeBackendWriteFailed,
		apperrors.ErrCodeAdapterUnavailable,
		apperrors.ErrCodeNotificationFailed:
		return http.StatusBadGateway
	case apperrors.ErrCodeAdapterTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
