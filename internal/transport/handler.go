package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-food-analyzer/internal/auth"
	"go-food-analyzer/internal/config"
	apperrors "go-food-analyzer/internal/errors"
	"go-food-analyzer/internal/logger"
	"go-food-analyzer/internal/service"
	"go-food-analyzer/pkg/models"
)

const (
	headerRequestID = "X-Request-ID"
	headerOCRStatus = "X-OCR-Status"

	subjectKey = "auth_subject"
)

// TokenValidator verifies bearer tokens. A nil validator disables the gate.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// StatsProvider reports runtime counters for /stats.
type StatsProvider func() map[string]interface{}

// NewHandler builds the gin router.
func NewHandler(svc service.FoodAnalysisService, cfg *config.Config, validator TokenValidator, stats StatsProvider) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Public routes
	r.GET("/health", healthCheck)
	r.GET("/api/ping", ping)

	protected := r.Group("/")
	protected.Use(authenticate(validator))
	protected.GET("/stats", statsHandler(stats))
	protected.POST("/api/gemini/analyze-food", analyzeFood(svc, cfg))
	protected.POST("/api/gemini-proxy/:variant", proxyAnalyze(svc, cfg))

	return r
}

func analyzeFood(svc service.FoodAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AnalyzeFoodRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		runAnalysis(c, svc, cfg, models.AnalysisRequest{
			ImagePayload: req.ImagePayload,
			Variant:      models.Variant(req.Variant),
		})
	}
}

// proxyAnalyze serves the path-variant form: POST /api/gemini-proxy/{variant}.
func proxyAnalyze(svc service.FoodAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ProxyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		runAnalysis(c, svc, cfg, models.AnalysisRequest{
			ImagePayload: req.ImageData,
			Variant:      models.Variant(c.Param("variant")),
		})
	}
}

func runAnalysis(c *gin.Context, svc service.FoodAnalysisService, cfg *config.Config, req models.AnalysisRequest) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
	defer cancel()

	result, err := svc.Analyze(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := "ok"
	if result.OCRDegraded {
		status = "degraded"
	}
	c.Header(headerOCRStatus, status)
	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Document)
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func statsHandler(stats StatsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if stats == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, stats())
	}
}

// Middleware and helper functions

// requestID propagates or assigns X-Request-ID and stores it in the request
// context for log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
			"subject":     c.GetString(subjectKey),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func authenticate(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil {
			c.Next()
			return
		}
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, err)
			return
		}
		claims, err := validator.Validate(token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(subjectKey, claims.Subject)
		c.Request = c.Request.WithContext(auth.ContextWithSubject(c.Request.Context(), claims.Subject))
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

// bindError maps a JSON binding failure. An oversized body surfaces here as
// *http.MaxBytesError.
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &apperrors.AppError{
			Type:       apperrors.ErrorTypeValidation,
			Kind:       apperrors.KindValidation,
			Stage:      apperrors.StageTransport,
			Message:    "request body too large",
			StatusCode: http.StatusRequestEntityTooLarge,
			Cause:      err,
		}
	}
	return apperrors.NewValidationError("invalid request format", err)
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)
	body := models.ErrorResponse{
		Error:     http.StatusText(code),
		Status:    code,
		Kind:      string(apperrors.KindInternal),
		Message:   "request processing failed",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if appErr, ok := apperrors.As(err); ok {
		body.Kind = string(appErr.Kind)
		body.Stage = string(appErr.Stage)
		body.Message = appErr.Message
		if appErr.Details != "" {
			body.Message += ": " + appErr.Details
		}
	}

	// Log the error with context
	logger.FromContext(c.Request.Context()).WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"kind":        body.Kind,
		"stage":       body.Stage,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, body)
}
