package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type PaymentProofFilter struct {
	Status    types.PaymentStatus
	StudentID uuid.UUID
	CourseID  uuid.UUID
	Limit     int
	Offset    int
}

// StatusTotal is one row of the per-status aggregate.
type StatusTotal struct {
	Status types.PaymentStatus
	Count  int64
	Amount float64
}

// ProofPoint is the minimal projection used to build time series.
type ProofPoint struct {
	Status    types.PaymentStatus
	Amount    float64
	CreatedAt time.Time
}

type PaymentProofRepo interface {
	Create(dbc dbctx.Context, proof *types.PaymentProof) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PaymentProof, error)
	List(dbc dbctx.Context, filter PaymentProofFilter) ([]*types.PaymentProof, int64, error)
	LatestForStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.PaymentProof, error)
	HasPending(dbc dbctx.Context, studentID, courseID uuid.UUID) (bool, error)
	// TransitionStatus applies updates only if the row is still in status
	// `from`. The returned bool is false when another writer got there first.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to types.PaymentStatus, updates map[string]interface{}) (bool, error)
	TotalsByStatus(dbc dbctx.Context, since *time.Time) ([]StatusTotal, error)
	ListPointsSince(dbc dbctx.Context, since *time.Time) ([]ProofPoint, error)
}

type paymentProofRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPaymentProofRepo(db *gorm.DB, baseLog *logger.Logger) PaymentProofRepo {
	return &paymentProofRepo{db: db, log: baseLog.With("repo", "PaymentProofRepo")}
}

func (r *paymentProofRepo) Create(dbc dbctx.Context, proof *types.PaymentProof) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(proof).Error
}

func (r *paymentProofRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PaymentProof, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.PaymentProof
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *paymentProofRepo) List(dbc dbctx.Context, filter PaymentProofFilter) ([]*types.PaymentProof, int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&types.PaymentProof{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.StudentID != uuid.Nil {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.CourseID != uuid.Nil {
		q = q.Where("course_id = ?", filter.CourseID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.PaymentProof
	if err := q.Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *paymentProofRepo) LatestForStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.PaymentProof, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.PaymentProof
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *paymentProofRepo) HasPending(dbc dbctx.Context, studentID, courseID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.PaymentProof{}).
		Where("student_id = ? AND course_id = ? AND status = ?", studentID, courseID, types.PaymentPending).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *paymentProofRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to types.PaymentStatus, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	fields := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		fields[k] = v
	}
	fields["status"] = to
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now().UTC()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.PaymentProof{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentProofRepo) TotalsByStatus(dbc dbctx.Context, since *time.Time) ([]StatusTotal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.PaymentProof{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("status")
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var out []StatusTotal
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *paymentProofRepo) ListPointsSince(dbc dbctx.Context, since *time.Time) ([]ProofPoint, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.PaymentProof{}).
		Select("status, amount, created_at").
		Order("created_at ASC")
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var out []ProofPoint
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
