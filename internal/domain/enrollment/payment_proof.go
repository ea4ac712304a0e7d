package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentProof is a student's claim of payment for a course. Rows are never
// deleted; status moves pending -> approved or pending -> rejected exactly once.
type PaymentProof struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID     `gorm:"type:uuid;not null;index;column:student_id" json:"studentId"`
	CourseID  uuid.UUID     `gorm:"type:uuid;not null;index;column:course_id" json:"courseId"`
	Amount    float64       `gorm:"not null;column:amount" json:"amount"`
	Currency  string        `gorm:"not null;default:EGP;column:currency" json:"currency"`
	Status    PaymentStatus `gorm:"not null;default:pending;index;column:status" json:"status"`

	ProofImageKey    string         `gorm:"not null;column:proof_image_key" json:"proofImageKey"`
	ProofContentType string         `gorm:"not null;column:proof_content_type" json:"proofContentType"`
	ProofSizeBytes   int64          `gorm:"not null;column:proof_size_bytes" json:"proofSizeBytes"`
	ProofDigest      string         `gorm:"not null;index;column:proof_digest" json:"proofDigest"`
	SenderNumber     string         `gorm:"not null;column:sender_number" json:"senderNumber"`
	StudentNumber    string         `gorm:"not null;column:student_number" json:"studentNumber"`
	ParentNumber     string         `gorm:"not null;column:parent_number" json:"parentNumber"`
	Metadata         datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	ApprovedBy      *uuid.UUID `gorm:"type:uuid;column:approved_by" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `gorm:"column:approved_at" json:"approvedAt,omitempty"`
	RejectedBy      *uuid.UUID `gorm:"type:uuid;column:rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time `gorm:"column:rejected_at" json:"rejectedAt,omitempty"`
	RejectionReason string     `gorm:"column:rejection_reason" json:"rejectionReason,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (PaymentProof) TableName() string { return "payment_proof" }

func (p *PaymentProof) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PaymentPending
	}
	return nil
}

func (p *PaymentProof) IsPending() bool { return p != nil && p.Status == PaymentPending }

// CanTransition reports whether from -> to is a legal proof transition.
func CanTransition(from, to PaymentStatus) bool {
	return from == PaymentPending && (to == PaymentApproved || to == PaymentRejected)
}

// ProofMetadata is the JSON blob stored alongside the proof image.
type ProofMetadata struct {
	OriginalFilename string `json:"originalFilename,omitempty"`
	Width            int    `json:"width,omitempty"`
	Height           int    `json:"height,omitempty"`
}
