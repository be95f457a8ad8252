package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medsafe-risk-server/internal/audit"
	"github.com/medsafe-risk-server/internal/domain"
	"github.com/medsafe-risk-server/internal/middleware"
	"github.com/medsafe-risk-server/internal/riskconfig"
)

// Assessor runs one complete risk assessment.
type Assessor interface {
	Assess(ctx context.Context, patientID string, prescription []domain.PrescriptionItem) (*domain.RiskAssessment, error)
}

// BreakerReporter exposes collaborator circuit-breaker states for the
// health endpoint.
type BreakerReporter interface {
	BreakerStates() map[string]string
}

// Server represents the HTTP server
type Server struct {
	configManager Manager
	orchestrator  Assessor
	scoringConfig *riskconfig.Store
	auditStore    audit.Store
	breakers      BreakerReporter
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// Manager is the subset of the configuration layer the server needs.
type Manager interface {
	GetConfig() *domain.Config
	GetServerConfig() *domain.ServerConfig
}

// NewServer creates a new HTTP server instance
func NewServer(
	configManager Manager,
	orchestrator Assessor,
	scoringConfig *riskconfig.Store,
	auditStore audit.Store,
	breakers BreakerReporter,
	logger *logrus.Logger,
) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(logger))

	server := &Server{
		configManager: configManager,
		orchestrator:  orchestrator,
		scoringConfig: scoringConfig,
		auditStore:    auditStore,
		breakers:      breakers,
		logger:        logger,
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Start starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Router exposes the gin engine, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/predict/risk", s.handlePredictRisk)
	s.router.GET("/risk/:patientID", s.handleGetRiskHistory)
	s.router.GET("/risk/config", s.handleGetScoringConfig)
	s.router.PUT("/risk/config", s.handlePutScoringConfig)
}

// riskRequest is the assessment request body.
type riskRequest struct {
	PatientID    string                    `json:"patient_id" binding:"required"`
	Prescription []domain.PrescriptionItem `json:"prescription"`
}

// handlePredictRisk runs a full risk assessment for one prescription.
func (s *Server) handlePredictRisk(c *gin.Context) {
	requestID := c.GetString("request_id")

	var req riskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewRiskError(
			domain.ErrCodeInvalidRequest, "malformed request body", err.Error(), requestID))
		return
	}

	assessment, err := s.orchestrator.Assess(c.Request.Context(), req.PatientID, req.Prescription)
	if err != nil {
		s.writeAssessError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// writeAssessError maps orchestration failures onto HTTP statuses.
func (s *Server) writeAssessError(c *gin.Context, requestID string, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyPrescription), errors.Is(err, domain.ErrMissingDrugID):
		c.JSON(http.StatusBadRequest, domain.NewRiskError(
			domain.ErrCodeInvalidRequest, "invalid prescription", err.Error(), requestID))
		return
	case errors.Is(err, domain.ErrPatientNotFound):
		c.JSON(http.StatusNotFound, domain.NewRiskError(
			domain.ErrCodeNotFound, "patient not found", err.Error(), requestID))
		return
	}

	var riskErr *domain.RiskError
	if errors.As(err, &riskErr) {
		status := http.StatusInternalServerError
		switch riskErr.Code {
		case domain.ErrCodeInvalidRequest:
			status = http.StatusBadRequest
		case domain.ErrCodeNotFound:
			status = http.StatusNotFound
		case domain.ErrCodeCollaboratorTimeout:
			status = http.StatusGatewayTimeout
		case domain.ErrCodeCollaboratorFailure:
			status = http.StatusBadGateway
		}
		c.JSON(status, riskErr)
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, domain.NewRiskError(
			domain.ErrCodeCollaboratorTimeout, "assessment cancelled", err.Error(), requestID))
		return
	}

	s.logger.WithError(err).Error("Risk assessment failed")
	c.JSON(http.StatusInternalServerError, domain.NewRiskError(
		domain.ErrCodeInternal, "risk assessment failed", err.Error(), requestID))
}

// handleGetRiskHistory returns recent audited assessments for a patient.
func (s *Server) handleGetRiskHistory(c *gin.Context) {
	requestID := c.GetString("request_id")
	patientID := c.Param("patientID")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			c.JSON(http.StatusBadRequest, domain.NewRiskError(
				domain.ErrCodeInvalidRequest, "limit must be an integer between 1 and 200", raw, requestID))
			return
		}
		limit = parsed
	}

	records, err := s.auditStore.ListByPatient(c.Request.Context(), patientID, limit)
	if err != nil {
		s.logger.WithError(err).WithField("patient_id", patientID).Error("Audit lookup failed")
		c.JSON(http.StatusInternalServerError, domain.NewRiskError(
			domain.ErrCodeInternal, "failed to load assessment history", err.Error(), requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patient_id":  patientID,
		"assessments": records,
	})
}

// handleGetScoringConfig returns the active scoring configuration.
func (s *Server) handleGetScoringConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.scoringConfig.Snapshot())
}

// scoringConfigRequest is the config replacement body. The version is
// assigned server-side and cannot be supplied by the caller.
type scoringConfigRequest struct {
	DDIWeight  float64           `json:"ddi_weight"`
	ADRWeight  float64           `json:"adr_weight"`
	Thresholds domain.Thresholds `json:"thresholds"`
}

// handlePutScoringConfig validates and atomically swaps the scoring
// configuration. A rejected payload leaves the active config untouched.
func (s *Server) handlePutScoringConfig(c *gin.Context) {
	requestID := c.GetString("request_id")

	var req scoringConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewRiskError(
			domain.ErrCodeInvalidRequest, "malformed configuration body", err.Error(), requestID))
		return
	}

	cfg := domain.ScoringConfig{
		DDIWeight:  req.DDIWeight,
		ADRWeight:  req.ADRWeight,
		Thresholds: req.Thresholds,
	}
	if err := s.scoringConfig.Replace(cfg); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewRiskError(
			domain.ErrCodeInvalidConfiguration, "scoring configuration rejected", err.Error(), requestID))
		return
	}

	c.JSON(http.StatusOK, s.scoringConfig.Snapshot())
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   "1.0.0",
	}
	if s.breakers != nil {
		resp["collaborators"] = s.breakers.BreakerStates()
	}
	c.JSON(http.StatusOK, resp)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// loggingMiddleware emits one structured access log line per request.
func loggingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  c.GetString("request_id"),
		}).Info("Request completed")
	}
}
