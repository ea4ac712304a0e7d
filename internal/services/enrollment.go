package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursegate-backend/internal/data/repos"
	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/domain/enrollment"
	"github.com/yungbote/coursegate-backend/internal/platform/apierr"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

// EnrollmentView is the gate decision for one (student, course) pair.
// Enrollment is set only when a record is persisted.
type EnrollmentView struct {
	CourseID    uuid.UUID               `json:"courseId"`
	Status      types.GateStatus        `json:"status"`
	Affordance  enrollment.Affordance   `json:"affordance"`
	CanAccess   bool                    `json:"canAccessContent"`
	Enrollment  *types.EnrollmentRecord `json:"enrollment,omitempty"`
	LatestProof *types.PaymentProof     `json:"latestPaymentProof,omitempty"`
}

type EnrollmentOverview struct {
	Enrollments    []EnrollmentView `json:"enrollments"`
	AllowedCourses []uuid.UUID      `json:"allowedCourses"`
}

type EnrollmentService interface {
	Status(ctx context.Context, userID, courseID uuid.UUID) (*EnrollmentView, error)
	ListForUser(ctx context.Context, userID uuid.UUID) (*EnrollmentOverview, error)
	RequireEnrolled(ctx context.Context, userID, courseID uuid.UUID) error
}

type enrollmentService struct {
	db          *gorm.DB
	log         *logger.Logger
	enrollments repos.EnrollmentRepo
	allowed     repos.AllowedCourseRepo
	proofs      repos.PaymentProofRepo
	courses     repos.CourseRepo
}

func NewEnrollmentService(
	db *gorm.DB,
	log *logger.Logger,
	enrollments repos.EnrollmentRepo,
	allowed repos.AllowedCourseRepo,
	proofs repos.PaymentProofRepo,
	courses repos.CourseRepo,
) EnrollmentService {
	return &enrollmentService{
		db:          db,
		log:         log.With("service", "EnrollmentService"),
		enrollments: enrollments,
		allowed:     allowed,
		proofs:      proofs,
		courses:     courses,
	}
}

func (s *enrollmentService) Status(ctx context.Context, userID, courseID uuid.UUID) (*EnrollmentView, error) {
	dbc := dbctx.Context{Ctx: ctx}
	course, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if course == nil {
		return nil, &apierr.NotFoundError{Kind: "course", ID: courseID.String()}
	}
	rec, err := s.enrollments.Get(dbc, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	latest, err := s.proofs.LatestForStudentCourse(dbc, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load latest proof: %w", err)
	}
	return buildEnrollmentView(courseID, rec, latest), nil
}

// buildEnrollmentView derives the gate from the persisted record, or from a
// transient record built from the latest proof when none is persisted yet.
func buildEnrollmentView(courseID uuid.UUID, rec *types.EnrollmentRecord, latest *types.PaymentProof) *EnrollmentView {
	input := rec
	if input == nil && latest != nil {
		input = &types.EnrollmentRecord{
			UserID:         latest.StudentID,
			CourseID:       latest.CourseID,
			PaymentStatus:  latest.Status,
			PaymentProofID: &latest.ID,
			EnrolledAt:     latest.CreatedAt,
		}
	}
	status := enrollment.DeriveStatus(input)
	return &EnrollmentView{
		CourseID:    courseID,
		Status:      status,
		Affordance:  enrollment.AffordanceFor(status),
		CanAccess:   status.CanAccessContent(),
		Enrollment:  rec,
		LatestProof: latest,
	}
}

func (s *enrollmentService) ListForUser(ctx context.Context, userID uuid.UUID) (*EnrollmentOverview, error) {
	dbc := dbctx.Context{Ctx: ctx}
	records, err := s.enrollments.ListByUser(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	allowedIDs, err := s.allowed.ListCourseIDs(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("list allowed courses: %w", err)
	}
	proofs, err := s.listProofs(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment proofs: %w", err)
	}

	// Proofs are newest first, so the first seen per course is the latest.
	latest := map[uuid.UUID]*types.PaymentProof{}
	var proofOrder []uuid.UUID
	for _, p := range proofs {
		if _, ok := latest[p.CourseID]; !ok {
			latest[p.CourseID] = p
			proofOrder = append(proofOrder, p.CourseID)
		}
	}

	out := &EnrollmentOverview{Enrollments: []EnrollmentView{}, AllowedCourses: allowedIDs}
	if out.AllowedCourses == nil {
		out.AllowedCourses = []uuid.UUID{}
	}
	seen := map[uuid.UUID]bool{}
	for _, rec := range records {
		seen[rec.CourseID] = true
		out.Enrollments = append(out.Enrollments, *buildEnrollmentView(rec.CourseID, rec, latest[rec.CourseID]))
	}
	for _, courseID := range proofOrder {
		if seen[courseID] {
			continue
		}
		out.Enrollments = append(out.Enrollments, *buildEnrollmentView(courseID, nil, latest[courseID]))
	}
	return out, nil
}

// proofPageSize is the largest page the proof repo serves.
const proofPageSize = 200

// listProofs pages through every proof of the student, newest first.
func (s *enrollmentService) listProofs(dbc dbctx.Context, userID uuid.UUID) ([]*types.PaymentProof, error) {
	var out []*types.PaymentProof
	for offset := 0; ; offset += proofPageSize {
		page, total, err := s.proofs.List(dbc, repos.PaymentProofFilter{StudentID: userID, Limit: proofPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < proofPageSize || int64(offset+len(page)) >= total {
			return out, nil
		}
	}
}

func (s *enrollmentService) RequireEnrolled(ctx context.Context, userID, courseID uuid.UUID) error {
	ok, err := s.allowed.Has(dbctx.Context{Ctx: ctx}, userID, courseID)
	if err != nil {
		return fmt.Errorf("check course access: %w", err)
	}
	if !ok {
		return &apierr.ForbiddenError{Reason: "not enrolled in this course"}
	}
	return nil
}
