package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/coursegate-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// routeParams are logged when the matched route carries them.
var routeParams = []struct{ param, field string }{
	{"id", "proof_id"},
	{"courseId", "course_id"},
	{"videoId", "video_id"},
	{"examId", "exam_id"},
}

// RequestContext assigns request and trace ids, echoes them in response
// headers and writes one access log line per request. The trace id of an
// active span wins over a client supplied X-Trace-Id.
func RequestContext(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		td := requestTraceData(c)
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Writer.Header().Set(headerTraceID, td.TraceID)
		c.Writer.Header().Set(headerRequestID, td.RequestID)
		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			span.SetAttributes(attribute.String("http.request_id", td.RequestID))
		}

		c.Next()

		if log == nil || c.Request.URL.Path == "/healthcheck" {
			return
		}
		logRequest(log, c, td, time.Since(start))
	}
}

func requestTraceData(c *gin.Context) *ctxutil.TraceData {
	reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
	if reqID == "" {
		reqID = uuid.NewString()
	}
	var traceID string
	if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.HasTraceID() {
		traceID = spanCtx.TraceID().String()
	} else if traceID = strings.TrimSpace(c.GetHeader(headerTraceID)); traceID == "" {
		traceID = uuid.NewString()
	}
	return &ctxutil.TraceData{TraceID: traceID, RequestID: reqID}
}

func logRequest(log *logger.Logger, c *gin.Context, td *ctxutil.TraceData, dur time.Duration) {
	status := c.Writer.Status()
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	fields := []interface{}{
		"method", c.Request.Method,
		"path", path,
		"status", status,
		"duration_ms", dur.Milliseconds(),
		"trace_id", td.TraceID,
		"request_id", td.RequestID,
	}
	for _, p := range routeParams {
		if v := c.Param(p.param); v != "" {
			fields = append(fields, p.field, v)
		}
	}
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		fields = append(fields, "user_id", rd.UserID.String(), "role", string(rd.Role))
	}
	if len(c.Errors) > 0 {
		fields = append(fields, "errors", c.Errors.String())
	}

	switch {
	case status >= 500:
		log.Error("HTTP request", fields...)
	case status >= 400:
		log.Warn("HTTP request", fields...)
	default:
		log.Info("HTTP request", fields...)
	}
}
