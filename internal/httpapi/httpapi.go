package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockcheck/backend/internal/report"
	"stockcheck/backend/internal/service"
	"stockcheck/backend/internal/store"
)

const maxBodyBytes = 1 << 20

type API struct {
	service       *service.Service
	renderer      *report.Renderer
	allowedOrigin string
	logger        *zap.Logger
}

func New(svc *service.Service, renderer *report.Renderer, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		renderer:      renderer,
		allowedOrigin: allowedOrigin,
		logger:        logger.Named("http"),
	}
}

// Handler wires the gin engine with every route and middleware.
func (a *API) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(a.logger))
	r.Use(a.corsMiddleware())

	r.GET("/healthz", a.handleHealth)

	v1 := r.Group("/api/v1")
	v1.GET("/sales-units", a.handleSalesUnits)

	v1.GET("/sales-items", a.handleListSalesItems)
	v1.POST("/sales-items", a.handleCreateSalesItem)
	v1.GET("/sales-items/:id", a.handleGetSalesItem)
	v1.PUT("/sales-items/:id", a.handleUpdateSalesItem)
	v1.DELETE("/sales-items/:id", a.handleDeleteSalesItem)

	v1.GET("/suppliers", a.handleListSuppliers)
	v1.POST("/suppliers", a.handleCreateSupplier)

	v1.GET("/periods", a.handleListPeriods)
	v1.POST("/periods", a.handleCreatePeriod)
	v1.GET("/periods/:id", a.handleGetPeriod)
	v1.PUT("/periods/:id", a.handleUpdatePeriod)
	v1.DELETE("/periods/:id", a.handleDeletePeriod)
	v1.GET("/periods/:id/init-from", a.handleInitFrom)
	v1.POST("/periods/:id/roll-forward", a.handleRollForward)
	v1.POST("/periods/:id/items/:salesItemId/receipts", a.handleReceiveItems)
	v1.GET("/periods/:id/report", a.handlePeriodReport)

	v1.GET("/invoices", a.handleListInvoices)
	v1.POST("/invoices", a.handleCreateInvoice)
	v1.GET("/invoices/:id", a.handleGetInvoice)

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (a *API) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Access-Control-Allow-Origin", a.allowedOrigin)
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		h.Set("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		if c.Request.Body != nil && (c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		c.Next()
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeError maps store errors onto HTTP statuses. 5xx details are logged and
// kept out of the response.
func (a *API) writeError(c *gin.Context, err error) {
	a.writeErrorStatus(c, statusFor(err), err)
}

func (a *API) writeErrorStatus(c *gin.Context, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error",
			zap.Int("status", status),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (a *API) bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.writeErrorStatus(c, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
			return false
		}
		a.writeErrorStatus(c, http.StatusBadRequest, err)
		return false
	}
	return true
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}
