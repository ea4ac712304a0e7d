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

type AllowedCourseRepo interface {
	// Add inserts (user, course) into the set; adding an existing member is a
	// no-op and reports false.
	Add(dbc dbctx.Context, userID, courseID uuid.UUID) (bool, error)
	Has(dbc dbctx.Context, userID, courseID uuid.UUID) (bool, error)
	ListCourseIDs(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type allowedCourseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAllowedCourseRepo(db *gorm.DB, baseLog *logger.Logger) AllowedCourseRepo {
	return &allowedCourseRepo{db: db, log: baseLog.With("repo", "AllowedCourseRepo")}
}

func (r *allowedCourseRepo) Add(dbc dbctx.Context, userID, courseID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.AllowedCourse{UserID: userID, CourseID: courseID, GrantedAt: time.Now().UTC()}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *allowedCourseRepo) Has(dbc dbctx.Context, userID, courseID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.AllowedCourse{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *allowedCourseRepo) ListCourseIDs(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := []uuid.UUID{}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.AllowedCourse{}).
		Where("user_id = ?", userID).
		Order("granted_at ASC").
		Pluck("course_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
