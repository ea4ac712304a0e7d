package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/coursegate-backend/internal/data/repos"
	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/observability"
	"github.com/yungbote/coursegate-backend/internal/platform/apierr"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
	"github.com/yungbote/coursegate-backend/internal/platform/gcp"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/platform/validate"
)

type ProofImage struct {
	Filename string
	Data     []byte
}

type SubmitPaymentProofInput struct {
	StudentID     uuid.UUID
	CourseID      uuid.UUID
	Amount        float64 `json:"amount" validate:"gt=0"`
	SenderNumber  string  `json:"senderNumber" validate:"required,localphone"`
	StudentNumber string  `json:"studentNumber" validate:"required,localphone"`
	ParentNumber  string  `json:"parentNumber" validate:"required,localphone"`
	ProofImage    ProofImage
}

type BulkApproveItem struct {
	ID    uuid.UUID           `json:"id"`
	Proof *types.PaymentProof `json:"paymentProof"`
}

type BulkApproveFailure struct {
	ID      uuid.UUID `json:"id"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Status  string    `json:"status,omitempty"`
}

type BulkApproveResult struct {
	Approved []BulkApproveItem    `json:"approved"`
	Errors   []BulkApproveFailure `json:"errors"`
}

type PaymentProofConfig struct {
	ImagePolicy     ProofImagePolicy
	BulkConcurrency int
	ImageURLTTL     time.Duration
	Currency        string
}

type PaymentProofService interface {
	Submit(ctx context.Context, in SubmitPaymentProofInput) (*types.PaymentProof, error)
	Approve(ctx context.Context, proofID, adminID uuid.UUID) (*types.PaymentProof, error)
	Reject(ctx context.Context, proofID, adminID uuid.UUID, reason string) (*types.PaymentProof, error)
	BulkApprove(ctx context.Context, proofIDs []uuid.UUID, adminID uuid.UUID) (*BulkApproveResult, error)
	Statistics(ctx context.Context, filter StatisticsFilter) (*PaymentStatistics, error)
	Get(ctx context.Context, proofID uuid.UUID) (*types.PaymentProof, error)
	List(ctx context.Context, filter repos.PaymentProofFilter) ([]*types.PaymentProof, int64, error)
	ProofImageURL(ctx context.Context, proofID uuid.UUID) (string, error)
}

type paymentProofService struct {
	db          *gorm.DB
	log         *logger.Logger
	proofs      repos.PaymentProofRepo
	enrollments repos.EnrollmentRepo
	allowed     repos.AllowedCourseRepo
	courses     repos.CourseRepo
	users       repos.UserRepo
	store       gcp.ObjectStore
	notifier    EnrollmentNotifier
	validator   *validate.Validator
	cfg         PaymentProofConfig
	now         func() time.Time
}

func NewPaymentProofService(
	db *gorm.DB,
	log *logger.Logger,
	proofs repos.PaymentProofRepo,
	enrollments repos.EnrollmentRepo,
	allowed repos.AllowedCourseRepo,
	courses repos.CourseRepo,
	users repos.UserRepo,
	store gcp.ObjectStore,
	notifier EnrollmentNotifier,
	validator *validate.Validator,
	cfg PaymentProofConfig,
) PaymentProofService {
	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = 4
	}
	if cfg.ImageURLTTL <= 0 {
		cfg.ImageURLTTL = 15 * time.Minute
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = "EGP"
	}
	cfg.ImagePolicy = cfg.ImagePolicy.withDefaults()
	return &paymentProofService{
		db:          db,
		log:         log.With("service", "PaymentProofService"),
		proofs:      proofs,
		enrollments: enrollments,
		allowed:     allowed,
		courses:     courses,
		users:       users,
		store:       store,
		notifier:    notifier,
		validator:   validator,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *paymentProofService) Submit(ctx context.Context, in SubmitPaymentProofInput) (*types.PaymentProof, error) {
	in.SenderNumber = strings.TrimSpace(in.SenderNumber)
	in.StudentNumber = strings.TrimSpace(in.StudentNumber)
	in.ParentNumber = strings.TrimSpace(in.ParentNumber)

	verr := apierr.NewValidationError()
	if in.StudentID == uuid.Nil {
		verr.Add("studentId", "studentId is required")
	}
	if in.CourseID == uuid.Nil {
		verr.Add("courseId", "courseId is required")
	}
	if fieldErrs := s.validator.Struct(in); fieldErrs != nil {
		verr.Fields = append(verr.Fields, fieldErrs.Fields...)
	}
	info, msg := InspectProofImage(in.ProofImage.Data, s.cfg.ImagePolicy)
	if msg != "" {
		verr.Add("proofImage", msg)
	}
	if verr.HasErrors() {
		observability.Current().IncProofSubmission("invalid")
		return nil, verr
	}

	dbc := dbctx.Context{Ctx: ctx}
	course, err := s.courses.GetByID(dbc, in.CourseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if course == nil {
		return nil, &apierr.NotFoundError{Kind: "course", ID: in.CourseID.String()}
	}
	if err := s.ensureCanSubmit(dbc, in.StudentID, in.CourseID); err != nil {
		return nil, err
	}

	proofID := uuid.New()
	key := fmt.Sprintf("proofs/%s/%s.%s", in.StudentID, proofID, info.Extension)
	if err := s.store.Put(ctx, key, info.ContentType, bytes.NewReader(in.ProofImage.Data)); err != nil {
		return nil, fmt.Errorf("upload proof image: %w", err)
	}

	meta, _ := json.Marshal(types.ProofMetadata{
		OriginalFilename: strings.TrimSpace(in.ProofImage.Filename),
		Width:            info.Width,
		Height:           info.Height,
	})
	currency := course.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	proof := &types.PaymentProof{
		ID:               proofID,
		StudentID:        in.StudentID,
		CourseID:         in.CourseID,
		Amount:           in.Amount,
		Currency:         currency,
		Status:           types.PaymentPending,
		ProofImageKey:    key,
		ProofContentType: info.ContentType,
		ProofSizeBytes:   info.Size,
		ProofDigest:      info.Digest,
		SenderNumber:     in.SenderNumber,
		StudentNumber:    in.StudentNumber,
		ParentNumber:     in.ParentNumber,
		Metadata:         datatypes.JSON(meta),
	}
	if err := s.proofs.Create(dbc, proof); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.log.Warn("Failed to delete orphaned proof image", "key", key, "error", delErr)
		}
		// The partial unique index on pending proofs settles a submit race.
		if pending, pErr := s.proofs.HasPending(dbc, in.StudentID, in.CourseID); pErr == nil && pending {
			return nil, &apierr.ConflictError{Code: "pending_submission_exists", Message: "a payment proof for this course is already awaiting review"}
		}
		return nil, fmt.Errorf("create payment proof: %w", err)
	}

	observability.Current().IncProofSubmission("accepted")
	s.log.Info("Payment proof submitted",
		"payment_proof_id", proof.ID,
		"student_id", proof.StudentID,
		"course_id", proof.CourseID,
		"sender_number", proof.SenderNumber,
		"size_bytes", proof.ProofSizeBytes,
	)
	return proof, nil
}

func (s *paymentProofService) ensureCanSubmit(dbc dbctx.Context, studentID, courseID uuid.UUID) error {
	rec, err := s.enrollments.Get(dbc, studentID, courseID)
	if err != nil {
		return fmt.Errorf("load enrollment: %w", err)
	}
	if rec != nil && rec.PaymentStatus == types.PaymentApproved {
		return &apierr.ConflictError{Code: "already_enrolled", Message: "already enrolled in this course"}
	}
	pending, err := s.proofs.HasPending(dbc, studentID, courseID)
	if err != nil {
		return fmt.Errorf("check pending proofs: %w", err)
	}
	if pending {
		return &apierr.ConflictError{Code: "pending_submission_exists", Message: "a payment proof for this course is already awaiting review"}
	}
	return nil
}

func (s *paymentProofService) Approve(ctx context.Context, proofID, adminID uuid.UUID) (*types.PaymentProof, error) {
	var proof *types.PaymentProof
	err := dbctx.Transaction(ctx, s.db, func(dbc dbctx.Context) error {
		now := s.now().UTC()
		ok, err := s.proofs.TransitionStatus(dbc, proofID, types.PaymentPending, types.PaymentApproved, map[string]interface{}{
			"approved_by": adminID,
			"approved_at": now,
		})
		if err != nil {
			return fmt.Errorf("approve payment proof: %w", err)
		}
		if !ok {
			return s.notPending(dbc, proofID)
		}
		proof, err = s.proofs.GetByID(dbc, proofID)
		if err != nil {
			return fmt.Errorf("reload payment proof: %w", err)
		}
		if proof == nil {
			return &apierr.NotFoundError{Kind: "payment proof", ID: proofID.String()}
		}
		rec := &types.EnrollmentRecord{
			UserID:            proof.StudentID,
			CourseID:          proof.CourseID,
			PaymentStatus:     types.PaymentApproved,
			PaymentProofID:    &proof.ID,
			PaymentApprovedAt: &now,
		}
		if err := s.enrollments.Upsert(dbc, rec); err != nil {
			return fmt.Errorf("upsert enrollment: %w", err)
		}
		if _, err := s.allowed.Add(dbc, proof.StudentID, proof.CourseID); err != nil {
			return fmt.Errorf("grant course access: %w", err)
		}
		return nil
	})
	observability.Current().IncProofDecision("approve", decisionOutcome(err))
	if err != nil {
		return nil, err
	}

	s.log.Info("Payment proof approved",
		"payment_proof_id", proof.ID,
		"student_id", proof.StudentID,
		"course_id", proof.CourseID,
		"admin_id", adminID,
	)
	s.notifyEnrolled(ctx, proof)
	return proof, nil
}

func (s *paymentProofService) Reject(ctx context.Context, proofID, adminID uuid.UUID, reason string) (*types.PaymentProof, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > 1000 {
		return nil, apierr.NewValidationError(apierr.FieldError{Field: "reason", Message: "reason must be at most 1000 characters"})
	}
	var proof *types.PaymentProof
	err := dbctx.Transaction(ctx, s.db, func(dbc dbctx.Context) error {
		ok, err := s.proofs.TransitionStatus(dbc, proofID, types.PaymentPending, types.PaymentRejected, map[string]interface{}{
			"rejected_by":      adminID,
			"rejected_at":      s.now().UTC(),
			"rejection_reason": reason,
		})
		if err != nil {
			return fmt.Errorf("reject payment proof: %w", err)
		}
		if !ok {
			return s.notPending(dbc, proofID)
		}
		proof, err = s.proofs.GetByID(dbc, proofID)
		if err != nil {
			return fmt.Errorf("reload payment proof: %w", err)
		}
		if proof == nil {
			return &apierr.NotFoundError{Kind: "payment proof", ID: proofID.String()}
		}
		return nil
	})
	observability.Current().IncProofDecision("reject", decisionOutcome(err))
	if err != nil {
		return nil, err
	}

	s.log.Info("Payment proof rejected",
		"payment_proof_id", proof.ID,
		"student_id", proof.StudentID,
		"course_id", proof.CourseID,
		"admin_id", adminID,
	)
	if s.notifier != nil {
		if nErr := s.notifier.PaymentRejected(ctx, proof); nErr != nil {
			s.log.Warn("Notification delivery failed", "error", nErr, "payment_proof_id", proof.ID)
		}
	}
	return proof, nil
}

// notPending explains a lost CAS: the proof is either missing or terminal.
func (s *paymentProofService) notPending(dbc dbctx.Context, proofID uuid.UUID) error {
	current, err := s.proofs.GetByID(dbc, proofID)
	if err != nil {
		return fmt.Errorf("load payment proof: %w", err)
	}
	if current == nil {
		return &apierr.NotFoundError{Kind: "payment proof", ID: proofID.String()}
	}
	return &apierr.AlreadyProcessedError{ProofID: proofID.String(), Status: string(current.Status)}
}

func (s *paymentProofService) notifyEnrolled(ctx context.Context, proof *types.PaymentProof) {
	if s.notifier == nil || proof == nil {
		return
	}
	dbc := dbctx.Context{Ctx: ctx}
	student, err := s.users.GetByID(dbc, proof.StudentID)
	if err != nil || student == nil {
		// Push still goes out on the user channel without a profile.
		student = &types.User{ID: proof.StudentID}
	}
	course, err := s.courses.GetByID(dbc, proof.CourseID)
	if err != nil || course == nil {
		course = &types.Course{ID: proof.CourseID}
	}
	if nErr := s.notifier.CourseEnrolled(ctx, student, course); nErr != nil {
		s.log.Warn("Notification delivery failed", "error", nErr, "payment_proof_id", proof.ID)
	}
}

func (s *paymentProofService) BulkApprove(ctx context.Context, proofIDs []uuid.UUID, adminID uuid.UUID) (*BulkApproveResult, error) {
	ids := dedupeIDs(proofIDs)
	if len(ids) == 0 {
		return nil, apierr.NewValidationError(apierr.FieldError{Field: "ids", Message: "ids must contain at least one payment proof id"})
	}

	type outcome struct {
		proof *types.PaymentProof
		err   error
	}
	outcomes := make([]outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BulkConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			proof, err := s.Approve(gctx, id, adminID)
			outcomes[i] = outcome{proof: proof, err: err}
			// Per-id failures are reported, never returned, so one bad id
			// cannot cancel the rest of the batch.
			return nil
		})
	}
	_ = g.Wait()

	res := &BulkApproveResult{Approved: []BulkApproveItem{}, Errors: []BulkApproveFailure{}}
	for i, id := range ids {
		o := outcomes[i]
		if o.err == nil {
			res.Approved = append(res.Approved, BulkApproveItem{ID: id, Proof: o.proof})
			continue
		}
		classified := apierr.Classify(o.err)
		failure := BulkApproveFailure{ID: id, Code: classified.Code, Message: o.err.Error()}
		if ap, ok := asAlreadyProcessed(o.err); ok {
			failure.Status = ap.Status
		}
		if classified.Status >= 500 {
			s.log.Error("Bulk approve item failed", "payment_proof_id", id, "error", o.err)
			failure.Message = "internal error"
		}
		res.Errors = append(res.Errors, failure)
	}
	s.log.Info("Bulk approve finished", "requested", len(proofIDs), "approved", len(res.Approved), "failed", len(res.Errors), "admin_id", adminID)
	return res, nil
}

func (s *paymentProofService) Get(ctx context.Context, proofID uuid.UUID) (*types.PaymentProof, error) {
	proof, err := s.proofs.GetByID(dbctx.Context{Ctx: ctx}, proofID)
	if err != nil {
		return nil, fmt.Errorf("load payment proof: %w", err)
	}
	if proof == nil {
		return nil, &apierr.NotFoundError{Kind: "payment proof", ID: proofID.String()}
	}
	return proof, nil
}

func (s *paymentProofService) List(ctx context.Context, filter repos.PaymentProofFilter) ([]*types.PaymentProof, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apierr.NewValidationError(apierr.FieldError{Field: "status", Message: "status must be pending, approved or rejected"})
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.proofs.List(dbctx.Context{Ctx: ctx}, filter)
}

func (s *paymentProofService) ProofImageURL(ctx context.Context, proofID uuid.UUID) (string, error) {
	proof, err := s.Get(ctx, proofID)
	if err != nil {
		return "", err
	}
	return s.store.URL(ctx, proof.ProofImageKey, s.cfg.ImageURLTTL)
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func decisionOutcome(err error) string {
	var nf *apierr.NotFoundError
	var ap *apierr.AlreadyProcessedError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ap):
		return "already_processed"
	case errors.As(err, &nf):
		return "not_found"
	default:
		return "error"
	}
}

func asAlreadyProcessed(err error) (*apierr.AlreadyProcessedError, bool) {
	var ap *apierr.AlreadyProcessedError
	if errors.As(err, &ap) {
		return ap, true
	}
	return nil, false
}
