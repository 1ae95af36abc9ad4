package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"payment-processor/internal/models"
	"payment-processor/internal/service"
	"payment-processor/internal/stripeclient"
	"payment-processor/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// maxBodyBytes caps inbound notification bodies
const maxBodyBytes = 1 << 20

// PaymentCoordinator runs payment notifications
type PaymentCoordinator interface {
	HandleDirect(ctx context.Context, body json.RawMessage) models.DirectResponse
	HandleBatch(ctx context.Context, records []models.Record) []models.BatchItemResult
}

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	coordinator   PaymentCoordinator
	webhookSecret string
	checks        map[string]ReadinessCheck
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler. With an empty webhookSecret the
// Stripe webhook route accepts unsigned payloads.
func NewHandler(coordinator PaymentCoordinator, webhookSecret string, checks map[string]ReadinessCheck) *Handler {
	return &Handler{
		coordinator:   coordinator,
		webhookSecret: webhookSecret,
		checks:        checks,
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/payments/events", h.handleEvent)
		v1.POST("/payments/batch", h.handleBatch)
		v1.POST("/stripe/webhook", h.handleStripeWebhook)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck runs every registered dependency check
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// handleEvent processes one direct payment notification
func (h *Handler) handleEvent(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	resp := h.coordinator.HandleDirect(c.Request.Context(), body)
	c.String(resp.StatusCode, resp.Body)
}

// handleBatch processes a Records envelope and lists the failed records
func (h *Handler) handleBatch(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	var req models.BatchInvocation
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	results := h.coordinator.HandleBatch(c.Request.Context(), req.Records)
	c.JSON(http.StatusOK, service.BuildBatchResponse(results))
}

// handleStripeWebhook verifies the signature, then processes the event
func (h *Handler) handleStripeWebhook(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	if h.webhookSecret != "" {
		if err := stripeclient.VerifyWebhook(body, c.GetHeader(stripeclient.SignatureHeader), h.webhookSecret); err != nil {
			h.logger.Warn("Rejected webhook", zap.Error(err))
			util.PaymentEventsRejectedTotal.WithLabelValues("bad_signature").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
			return
		}
	}

	resp := h.coordinator.HandleDirect(c.Request.Context(), body)
	c.String(resp.StatusCode, resp.Body)
}

// readBody reads at most maxBodyBytes; a larger body is answered with 413
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		abortBodyError(c, err)
		return nil, false
	}
	return body, true
}

func abortBodyError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		util.PaymentEventsRejectedTotal.WithLabelValues("too_large").Inc()
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "Request body too large",
			"limit": tooLarge.Limit,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Failed to read request body",
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
