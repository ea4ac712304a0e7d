package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursegate-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email, role string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "A",
		LastName:  "B",
		Role:      role,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedCourse creates a course with the given number of videos and exams.
func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, title string, videos, exams int) (*types.Course, types.Outline) {
	tb.Helper()
	c := &types.Course{ID: uuid.New(), Title: title, Price: 500, Currency: "EGP"}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	outline := types.Outline{CourseID: c.ID}
	for i := 0; i < videos; i++ {
		v := &types.CourseVideo{ID: uuid.New(), CourseID: c.ID, Title: "video", Position: i}
		if err := tx.WithContext(ctx).Create(v).Error; err != nil {
			tb.Fatalf("seed video: %v", err)
		}
		outline.VideoIDs = append(outline.VideoIDs, v.ID)
	}
	for i := 0; i < exams; i++ {
		e := &types.CourseExam{ID: uuid.New(), CourseID: c.ID, Title: "exam", Position: i}
		if err := tx.WithContext(ctx).Create(e).Error; err != nil {
			tb.Fatalf("seed exam: %v", err)
		}
		outline.ExamIDs = append(outline.ExamIDs, e.ID)
	}
	return c, outline
}

func SeedPaymentProof(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID, amount float64) *types.PaymentProof {
	tb.Helper()
	p := &types.PaymentProof{
		ID:               uuid.New(),
		StudentID:        studentID,
		CourseID:         courseID,
		Amount:           amount,
		Currency:         "EGP",
		Status:           types.PaymentPending,
		ProofImageKey:    "proofs/" + studentID.String() + "/x.png",
		ProofContentType: "image/png",
		ProofSizeBytes:   1024,
		ProofDigest:      uuid.NewString(),
		SenderNumber:     "01012345678",
		StudentNumber:    "01112345678",
		ParentNumber:     "01212345678",
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed payment proof: %v", err)
	}
	return p
}
