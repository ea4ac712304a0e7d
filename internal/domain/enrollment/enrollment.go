package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentApproved, PaymentRejected:
		return true
	default:
		return false
	}
}

// Record is a student's enrollment in one course. At most one row exists per
// (user, course); approval updates it in place.
type Record struct {
	ID                uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course,priority:1;column:user_id" json:"userId"`
	CourseID          uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course,priority:2;index;column:course_id" json:"courseId"`
	PaymentStatus     PaymentStatus `gorm:"not null;default:pending;column:payment_status" json:"paymentStatus"`
	PaymentProofID    *uuid.UUID    `gorm:"type:uuid;column:payment_proof_id" json:"paymentProofId,omitempty"`
	EnrolledAt        time.Time     `gorm:"not null;column:enrolled_at" json:"enrolledAt"`
	PaymentApprovedAt *time.Time    `gorm:"column:payment_approved_at" json:"paymentApprovedAt,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (Record) TableName() string { return "enrollment" }

func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.EnrolledAt.IsZero() {
		r.EnrolledAt = time.Now().UTC()
	}
	return nil
}

// AllowedCourse is one member of a student's allowed-courses set.
type AllowedCourse struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;column:user_id" json:"userId"`
	CourseID  uuid.UUID `gorm:"type:uuid;primaryKey;column:course_id" json:"courseId"`
	GrantedAt time.Time `gorm:"not null;column:granted_at" json:"grantedAt"`
}

func (AllowedCourse) TableName() string { return "user_allowed_course" }
