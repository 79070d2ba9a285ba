package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
)

// DeriveRequest is the request body for creating a derivation run.
// Config overrides the server's default rule configuration when present.
type DeriveRequest struct {
	Subjects []domain.SubjectInput    `json:"subjects" binding:"required"`
	Config   *domain.DerivationConfig `json:"config,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK

	if s.health != nil {
		if err := s.health.Health(c.Request.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			s.log.WithError(err).Warn("Health check failed")
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// handleCreateDerivation runs the full pipeline over the posted subjects and
// persists the result as a new run.
func (s *Server) handleCreateDerivation(c *gin.Context) {
	var req DeriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Subjects) == 0 {
		s.errorResponse(c, http.StatusBadRequest, "at least one subject is required")
		return
	}

	cfg := s.configManager.GetDerivationConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		s.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	workers := s.configManager.GetConfig().Workers.MaxConcurrentSubjects
	result, err := s.deriver.DeriveBatch(c.Request.Context(), req.Subjects, cfg, workers)
	if err != nil {
		s.log.WithError(err).Error("Derivation batch failed")
		s.errorResponse(c, http.StatusInternalServerError, "derivation failed")
		return
	}

	// Run identity and timestamp are assigned here so the pipeline itself
	// stays deterministic.
	result.Run.ID = uuid.New()
	result.Run.CreatedAt = time.Now().UTC()

	if s.runs != nil {
		if err := s.runs.Create(c.Request.Context(), result); err != nil {
			s.log.WithError(err).Error("Failed to persist derivation run")
			s.errorResponse(c, http.StatusInternalServerError, "failed to persist run")
			return
		}
	}
	if s.store != nil {
		if err := s.store.Save(c.Request.Context(), result); err != nil {
			s.log.WithError(err).Error("Failed to store run payload")
			s.errorResponse(c, http.StatusInternalServerError, "failed to store run payload")
			return
		}
	}

	s.log.WithFields(logrus.Fields{
		"run_id":   result.Run.ID,
		"subjects": result.Run.Subjects,
		"derived":  result.Run.Derived,
	}).Info("Derivation run created")

	c.JSON(http.StatusCreated, result)
}

// handleListRuns returns recent run summaries with pagination
func (s *Server) handleListRuns(c *gin.Context) {
	limit := parsePositiveInt(c.Query("limit"), 20)
	offset := parsePositiveInt(c.Query("offset"), 0)

	runs, err := s.runs.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.log.WithError(err).Error("Failed to list runs")
		s.errorResponse(c, http.StatusInternalServerError, "failed to list runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}

// handleGetRun returns one run's summary including its error report
func (s *Server) handleGetRun(c *gin.Context) {
	id, ok := s.runID(c)
	if !ok {
		return
	}

	run, err := s.runs.GetByID(c.Request.Context(), id)
	if err != nil {
		s.notFoundOrError(c, err, "failed to get run")
		return
	}

	c.JSON(http.StatusOK, run)
}

// handleGetRecords returns all response records of a run
func (s *Server) handleGetRecords(c *gin.Context) {
	id, ok := s.runID(c)
	if !ok {
		return
	}

	records, err := s.responses.GetRecords(c.Request.Context(), id)
	if err != nil {
		s.notFoundOrError(c, err, "failed to get response records")
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": id, "records": records})
}

// handleGetSubjectRecords returns one subject's response sequence
func (s *Server) handleGetSubjectRecords(c *gin.Context) {
	id, ok := s.runID(c)
	if !ok {
		return
	}
	subjectID := c.Param("subject_id")

	records, err := s.responses.GetRecordsBySubject(c.Request.Context(), id, subjectID)
	if err != nil {
		s.notFoundOrError(c, err, "failed to get subject records")
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": id, "subject_id": subjectID, "records": records})
}

// handleGetBORs returns the best overall responses of a run
func (s *Server) handleGetBORs(c *gin.Context) {
	id, ok := s.runID(c)
	if !ok {
		return
	}

	bors, err := s.responses.GetBORs(c.Request.Context(), id)
	if err != nil {
		s.notFoundOrError(c, err, "failed to get best overall responses")
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": id, "bors": bors})
}

// handleGetMetrics returns the stored ORR/DCR summary of a run
func (s *Server) handleGetMetrics(c *gin.Context) {
	id, ok := s.runID(c)
	if !ok {
		return
	}

	metrics, err := s.runs.GetMetrics(c.Request.Context(), id)
	if err != nil {
		s.notFoundOrError(c, err, "failed to get run metrics")
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// handleGetErrors returns the per-subject error report of a run
func (s *Server) handleGetErrors(c *gin.Context) {
	id, ok := s.runID(c)
	if !ok {
		return
	}

	run, err := s.runs.GetByID(c.Request.Context(), id)
	if err != nil {
		s.notFoundOrError(c, err, "failed to get run errors")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":         id,
		"errors":         run.Errors,
		"errors_by_kind": run.ErrorsByKind,
	})
}

// handleExportRun streams the complete stored run payload as JSON
func (s *Server) handleExportRun(c *gin.Context) {
	id, ok := s.runID(c)
	if !ok {
		return
	}

	if s.store == nil {
		s.errorResponse(c, http.StatusNotImplemented, "run export is not enabled")
		return
	}

	// Resolve existence before committing the response status.
	stored, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.log.WithError(err).Error("Failed to load run for export")
		s.errorResponse(c, http.StatusInternalServerError, "failed to export run")
		return
	}
	if stored == nil {
		s.errorResponse(c, http.StatusNotFound, "run not found")
		return
	}

	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	if err := s.store.ExportJSON(c.Request.Context(), id, c.Writer); err != nil {
		// Headers are already out; log and abort the stream.
		s.log.WithError(err).Error("Failed to export run")
		c.Abort()
	}
}

func (s *Server) runID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.errorResponse(c, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) notFoundOrError(c *gin.Context, err error, msg string) {
	if errors.Is(err, domain.ErrNotFound) {
		s.errorResponse(c, http.StatusNotFound, "run not found")
		return
	}
	s.log.WithError(err).Error(msg)
	s.errorResponse(c, http.StatusInternalServerError, msg)
}

func (s *Server) errorResponse(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{
		"error":          msg,
		"correlation_id": c.GetString("correlation_id"),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
