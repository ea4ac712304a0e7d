package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursegate-backend/internal/data/repos/catalog"
	"github.com/yungbote/coursegate-backend/internal/data/repos/enrollment"
	"github.com/yungbote/coursegate-backend/internal/data/repos/progress"
	"github.com/yungbote/coursegate-backend/internal/data/repos/user"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo

type CourseRepo = catalog.CourseRepo

type EnrollmentRepo = enrollment.EnrollmentRepo
type AllowedCourseRepo = enrollment.AllowedCourseRepo
type PaymentProofRepo = enrollment.PaymentProofRepo
type PaymentProofFilter = enrollment.PaymentProofFilter
type PaymentProofStatusTotal = enrollment.StatusTotal
type PaymentProofPoint = enrollment.ProofPoint

type ProgressRecordRepo = progress.ProgressRecordRepo
type ProgressItemRepo = progress.ProgressItemRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return catalog.NewCourseRepo(db, baseLog)
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return enrollment.NewEnrollmentRepo(db, baseLog)
}
func NewAllowedCourseRepo(db *gorm.DB, baseLog *logger.Logger) AllowedCourseRepo {
	return enrollment.NewAllowedCourseRepo(db, baseLog)
}
func NewPaymentProofRepo(db *gorm.DB, baseLog *logger.Logger) PaymentProofRepo {
	return enrollment.NewPaymentProofRepo(db, baseLog)
}

func NewProgressRecordRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRecordRepo {
	return progress.NewProgressRecordRepo(db, baseLog)
}
func NewProgressItemRepo(db *gorm.DB, baseLog *logger.Logger) ProgressItemRepo {
	return progress.NewProgressItemRepo(db, baseLog)
}
