package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/coursegate-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursegate-backend/internal/http/middleware"
	"github.com/yungbote/coursegate-backend/internal/observability"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	Metrics        *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware

	PaymentProofHandler *httpH.PaymentProofHandler
	EnrollmentHandler   *httpH.EnrollmentHandler
	ProgressHandler     *httpH.ProgressHandler
	RealtimeHandler     *httpH.RealtimeHandler
	HealthHandler       *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.RequestContext(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		api.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
	}

	// Payment proofs
	if h := cfg.PaymentProofHandler; h != nil {
		api.POST("/payment-proofs", h.Submit)
		api.GET("/payment-proofs/mine", h.ListMine)

		admin := api.Group("/payment-proofs")
		if cfg.AuthMiddleware != nil {
			admin.Use(cfg.AuthMiddleware.RequireAdmin())
		}
		admin.GET("", h.List)
		admin.GET("/statistics", h.Statistics)
		admin.POST("/bulk-approve", h.BulkApprove)
		admin.GET("/:id", h.Get)
		admin.POST("/:id/approve", h.Approve)
		admin.POST("/:id/reject", h.Reject)
	}

	// Enrollment gate
	if h := cfg.EnrollmentHandler; h != nil {
		api.GET("/enrollments", h.List)
		api.GET("/enrollments/:courseId", h.Status)
	}

	// Progress
	if h := cfg.ProgressHandler; h != nil {
		api.GET("/course-progress/:courseId", h.Get)
		api.POST("/course-progress/:courseId/video/:videoId/complete", h.CompleteVideo)
		api.POST("/course-progress/:courseId/exam/:examId/complete", h.CompleteExam)
		api.DELETE("/course-progress/:courseId/video/:videoId", h.UncompleteVideo)
		api.DELETE("/course-progress/:courseId/exam/:examId", h.UncompleteExam)
	}

	return r
}
