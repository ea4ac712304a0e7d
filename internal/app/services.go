package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/realtime"
	"github.com/yungbote/coursegate-backend/internal/services"
)

type Services struct {
	Auth         services.TokenVerifier
	Emitter      services.SSEEmitter
	Notifier     services.EnrollmentNotifier
	Enrollment   services.EnrollmentService
	PaymentProof services.PaymentProofService
	Progress     services.ProgressService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, hub *realtime.SSEHub) Services {
	log.Info("Wiring services...")

	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	if clients.SSEBus != nil {
		emitter = &services.RedisEmitter{Bus: clients.SSEBus}
	}
	notifier := services.NewEnrollmentNotifier(log, emitter, clients.Mail)

	enrollment := services.NewEnrollmentService(
		db, log,
		reposet.Enrollment,
		reposet.AllowedCourse,
		reposet.PaymentProof,
		reposet.Course,
	)
	paymentProof := services.NewPaymentProofService(
		db, log,
		reposet.PaymentProof,
		reposet.Enrollment,
		reposet.AllowedCourse,
		reposet.Course,
		reposet.User,
		clients.Store,
		notifier,
		clients.Validator,
		cfg.PaymentProof,
	)
	progress := services.NewProgressService(
		db, log,
		reposet.ProgressRecord,
		reposet.ProgressItem,
		reposet.Course,
		enrollment,
		notifier,
	)

	return Services{
		Auth:         services.NewTokenVerifier(log, cfg.JWTSecretKey, cfg.JWTIssuer),
		Emitter:      emitter,
		Notifier:     notifier,
		Enrollment:   enrollment,
		PaymentProof: paymentProof,
		Progress:     progress,
	}
}
