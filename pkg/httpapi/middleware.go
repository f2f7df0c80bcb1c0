package httpapi

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/logging"
	"github.com/otherjamesbrown/backoffice/pkg/observability"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID reuses the caller's X-Request-ID or generates one, and exposes it
// to handlers, the response, and the logger context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), requestID))
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// Recovery turns a panic into a 500 response.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithContext(c.Request.Context()).Error("Panic recovered",
					logging.Err(fmt.Errorf("%v", r)),
					logging.F("stack", string(debug.Stack())),
					logging.F("path", c.Request.URL.Path),
					logging.F("method", c.Request.Method),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(c, bferrors.CodeInternal, "internal server error"))
			}
		}()
		c.Next()
	}
}

// AccessLog logs every request after it completes.
func AccessLog(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logging.Field{
			logging.F("method", c.Request.Method),
			logging.F("path", c.FullPath()),
			logging.F("status", status),
			logging.F("duration_ms", time.Since(start).Milliseconds()),
		}
		if traceID := observability.GetTraceID(c.Request.Context()); traceID != "" {
			fields = append(fields, logging.F("trace_id", traceID))
		}
		log := logger.WithContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			log.Warn("HTTP request", fields...)
			return
		}
		log.Debug("HTTP request", fields...)
	}
}

// HTTPMetrics counts and times requests by route.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP metrics with reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: observability.Namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: observability.Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Middleware records the metrics.
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
