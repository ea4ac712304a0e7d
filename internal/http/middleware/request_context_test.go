package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursegate-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

func TestRequestContextAssignsIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestContext(logger.Nop()))
	var seen *ctxutil.TraceData
	r.GET("/api/payment-proofs/:id", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payment-proofs/abc", nil))

	if seen == nil || seen.TraceID == "" || seen.RequestID == "" {
		t.Fatalf("trace data: want ids got=%+v", seen)
	}
	if got := rec.Header().Get(headerRequestID); got != seen.RequestID {
		t.Fatalf("request id header: want=%q got=%q", seen.RequestID, got)
	}
	if got := rec.Header().Get(headerTraceID); got != seen.TraceID {
		t.Fatalf("trace id header: want=%q got=%q", seen.TraceID, got)
	}
}

func TestRequestContextKeepsClientIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestContext(nil))
	r.GET("/healthcheck", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set(headerRequestID, "req-1")
	req.Header.Set(headerTraceID, "trace-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get(headerRequestID); got != "req-1" {
		t.Fatalf("request id: want=%q got=%q", "req-1", got)
	}
	if got := rec.Header().Get(headerTraceID); got != "trace-1" {
		t.Fatalf("trace id: want=%q got=%q", "trace-1", got)
	}
}
