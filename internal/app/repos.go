package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursegate-backend/internal/data/repos"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type Repos struct {
	User           repos.UserRepo
	Course         repos.CourseRepo
	Enrollment     repos.EnrollmentRepo
	AllowedCourse  repos.AllowedCourseRepo
	PaymentProof   repos.PaymentProofRepo
	ProgressRecord repos.ProgressRecordRepo
	ProgressItem   repos.ProgressItemRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:           repos.NewUserRepo(db, log),
		Course:         repos.NewCourseRepo(db, log),
		Enrollment:     repos.NewEnrollmentRepo(db, log),
		AllowedCourse:  repos.NewAllowedCourseRepo(db, log),
		PaymentProof:   repos.NewPaymentProofRepo(db, log),
		ProgressRecord: repos.NewProgressRecordRepo(db, log),
		ProgressItem:   repos.NewProgressItemRepo(db, log),
	}
}
