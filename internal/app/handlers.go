package app

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	httpH "github.com/yungbote/coursegate-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursegate-backend/internal/http/middleware"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/realtime"
)

type Handlers struct {
	PaymentProof *httpH.PaymentProofHandler
	Enrollment   *httpH.EnrollmentHandler
	Progress     *httpH.ProgressHandler
	Realtime     *httpH.RealtimeHandler
	Health       *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, cfg Config, serviceset Services, hub *realtime.SSEHub, checks map[string]httpH.Pinger) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		PaymentProof: httpH.NewPaymentProofHandler(log, serviceset.PaymentProof, cfg.PaymentProof.ImagePolicy.MaxBytes),
		Enrollment:   httpH.NewEnrollmentHandler(log, serviceset.Enrollment),
		Progress:     httpH.NewProgressHandler(log, serviceset.Progress),
		Realtime:     httpH.NewRealtimeHandler(log, hub),
		Health:       httpH.NewHealthHandler(checks),
	}
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, serviceset Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{Auth: httpMW.NewAuthMiddleware(log, serviceset.Auth)}
}

// healthChecks backs GET /healthcheck?deep=1.
func healthChecks(db *gorm.DB, rdb *goredis.Client) map[string]httpH.Pinger {
	checks := map[string]httpH.Pinger{}
	if db != nil {
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}
