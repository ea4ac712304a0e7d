package domain

import (
	"github.com/yungbote/coursegate-backend/internal/domain/catalog"
	"github.com/yungbote/coursegate-backend/internal/domain/enrollment"
	"github.com/yungbote/coursegate-backend/internal/domain/progress"
	"github.com/yungbote/coursegate-backend/internal/domain/user"
)

type (
	User = user.User

	Course      = catalog.Course
	CourseVideo = catalog.CourseVideo
	CourseExam  = catalog.CourseExam
	Outline     = catalog.Outline

	EnrollmentRecord = enrollment.Record
	AllowedCourse    = enrollment.AllowedCourse
	PaymentProof     = enrollment.PaymentProof
	PaymentStatus    = enrollment.PaymentStatus
	ProofMetadata    = enrollment.ProofMetadata
	GateStatus       = enrollment.GateStatus

	ProgressItem     = progress.Item
	ProgressRecord   = progress.Record
	ProgressSnapshot = progress.Snapshot
	ProgressItemType = progress.ItemType
)

const (
	RoleStudent = user.RoleStudent
	RoleAdmin   = user.RoleAdmin

	PaymentPending  = enrollment.PaymentPending
	PaymentApproved = enrollment.PaymentApproved
	PaymentRejected = enrollment.PaymentRejected

	ItemVideo = progress.ItemVideo
	ItemExam  = progress.ItemExam
)

// Models lists every persisted entity, in migration order.
func Models() []any {
	return []any{
		&User{},
		&Course{},
		&CourseVideo{},
		&CourseExam{},
		&EnrollmentRecord{},
		&AllowedCourse{},
		&PaymentProof{},
		&ProgressRecord{},
		&ProgressItem{},
	}
}
