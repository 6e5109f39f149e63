package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-scan-capture/internal/aiprovider"
	"go-scan-capture/internal/config"
	apperrors "go-scan-capture/internal/errors"
	"go-scan-capture/internal/logger"
	"go-scan-capture/internal/service"
	"go-scan-capture/pkg/models"
)

type AnalysisRequest struct {
	URL  string `json:"url" binding:"required,url"`
	Fast bool   `json:"fast,omitempty"`
}

type CreateSessionRequest struct {
	Mode models.Mode `json:"mode" binding:"required"`
}

type GenerateImagesRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Count    int    `json:"count,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHandler(svc service.ScanService, ai *aiprovider.Router, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)
	r.POST("/analyze", analyzeImage(svc, cfg))

	sessions := r.Group("/sessions")
	{
		sessions.POST("", createSession(svc))
		sessions.GET("/:id", sessionProgress(svc))
		sessions.GET("/:id/plan", sessionPlan(svc))
		sessions.POST("/:id/steps/:stepID/capture", captureShot(svc, cfg))
		sessions.POST("/:id/steps/:stepID/retake", retakeStep(svc))
		sessions.POST("/:id/steps/:stepID/skip", skipStep(svc))
		sessions.POST("/:id/complete", completeSession(svc))
	}

	aiGroup := r.Group("/ai")
	{
		aiGroup.POST("/generate", generateText(ai, cfg))
		aiGroup.POST("/generate/stream", streamText(ai, cfg))
		aiGroup.POST("/images", generateImages(ai, cfg))
	}

	return r
}

func analyzeImage(svc service.ScanService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing quality analysis request")

		var req AnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		// Fast mode can also be toggled per request via query parameter.
		if fast := c.Query("fast"); fast != "" {
			req.Fast = fast == "true"
		}

		report, err := svc.AnalyzeImageURL(ctx, req.URL, req.Fast)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "analysis failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"url":                req.URL,
			"fast":               req.Fast,
			"passed":             report.Quality.Passed,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Quality analysis completed")

		c.JSON(http.StatusOK, report)
	}
}

func createSession(svc service.ScanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		progress, err := svc.CreateSession(c.Request.Context(), req.Mode)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to create session", err)
			return
		}
		c.JSON(http.StatusCreated, progress)
	}
}

func sessionProgress(svc service.ScanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		progress, err := svc.SessionProgress(c.Param("id"))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "session lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, progress)
	}
}

func sessionPlan(svc service.ScanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan, err := svc.SessionPlan(c.Param("id"))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "session lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"steps": plan})
	}
}

// captureShot accepts the raw image bytes as the request body.
func captureShot(svc service.ScanService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			respondError(c, http.StatusBadRequest, "failed to read image body", err)
			return
		}
		if len(data) == 0 {
			respondError(c, http.StatusBadRequest, "empty image body", nil)
			return
		}

		outcome, err := svc.CaptureShot(ctx, c.Param("id"), c.Param("stepID"), data)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "capture failed", err)
			return
		}
		c.JSON(http.StatusOK, outcome)
	}
}

func retakeStep(svc service.ScanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.RetakeStep(c.Param("id"), c.Param("stepID")); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "retake failed", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func skipStep(svc service.ScanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.SkipStep(c.Param("id"), c.Param("stepID")); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "skip failed", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func completeSession(svc service.ScanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		progress, err := svc.CompleteSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			// Incomplete sessions return the progress alongside the error so
			// the client can show what is missing.
			c.JSON(apperrors.GetStatusCode(err), gin.H{
				"error":    err.Error(),
				"progress": progress,
			})
			return
		}
		c.JSON(http.StatusOK, progress)
	}
}

func generateText(ai *aiprovider.Router, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.AITimeout)
		defer cancel()

		var req models.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		resp, err := ai.Generate(ctx, req)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "generation failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// generateImages returns the generated payloads base64-encoded in a list.
func generateImages(ai *aiprovider.Router, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.AITimeout)
		defer cancel()

		var req GenerateImagesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		images, provider, err := ai.GenerateImage(ctx, req.Prompt, aiprovider.Name(req.Provider), aiprovider.CallOptions{
			Model:      req.Model,
			ImageCount: req.Count,
		})
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "image generation failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"provider": provider,
			"images":   images,
		})
	}
}

// streamText relays completion chunks as server-sent events.
func streamText(ai *aiprovider.Router, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.AITimeout)
		defer cancel()

		var req models.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		stream, provider, err := ai.Stream(ctx, req)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "stream failed", err)
			return
		}
		defer stream.Close()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("X-AI-Provider", string(provider))

		c.Stream(func(w io.Writer) bool {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				c.SSEvent("done", "")
				return false
			}
			if err != nil {
				c.SSEvent("error", err.Error())
				return false
			}
			c.SSEvent("chunk", chunk.Text)
			return true
		})
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
