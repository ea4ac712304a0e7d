package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type EnrollmentRepo interface {
	Get(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.EnrollmentRecord, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.EnrollmentRecord, error)
	// Upsert writes the record keyed by (user, course), updating the payment
	// fields in place when a row already exists.
	Upsert(dbc dbctx.Context, rec *types.EnrollmentRecord) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{db: db, log: baseLog.With("repo", "EnrollmentRepo")}
}

func (r *enrollmentRepo) Get(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.EnrollmentRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.EnrollmentRecord
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *enrollmentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.EnrollmentRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.EnrollmentRecord
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("enrolled_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrollmentRepo) Upsert(dbc dbctx.Context, rec *types.EnrollmentRecord) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	if rec.EnrolledAt.IsZero() {
		rec.EnrolledAt = now
	}
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"payment_status",
				"payment_proof_id",
				"payment_approved_at",
				"updated_at",
			}),
		}).
		Create(rec).Error; err != nil {
		return err
	}
	// On conflict the generated id was discarded; reload the stored row.
	stored, err := r.Get(dbc, rec.UserID, rec.CourseID)
	if err != nil {
		return err
	}
	if stored != nil {
		*rec = *stored
	}
	return nil
}
