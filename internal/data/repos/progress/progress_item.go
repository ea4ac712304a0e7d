package progress

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type ProgressItemRepo interface {
	// Insert records a completion; an existing completion is left untouched
	// and reported as false.
	Insert(dbc dbctx.Context, item *types.ProgressItem) (bool, error)
	// Delete removes a completion; deleting a missing one reports false.
	Delete(dbc dbctx.Context, userID, courseID uuid.UUID, itemType types.ProgressItemType, itemID uuid.UUID) (bool, error)
	ListForCourse(dbc dbctx.Context, userID, courseID uuid.UUID) ([]*types.ProgressItem, error)
}

type progressItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressItemRepo(db *gorm.DB, baseLog *logger.Logger) ProgressItemRepo {
	return &progressItemRepo{db: db, log: baseLog.With("repo", "ProgressItemRepo")}
}

func (r *progressItemRepo) Insert(dbc dbctx.Context, item *types.ProgressItem) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "course_id"},
				{Name: "item_type"},
				{Name: "item_id"},
			},
			DoNothing: true,
		}).
		Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *progressItemRepo) Delete(dbc dbctx.Context, userID, courseID uuid.UUID, itemType types.ProgressItemType, itemID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ? AND item_type = ? AND item_id = ?", userID, courseID, itemType, itemID).
		Delete(&types.ProgressItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *progressItemRepo) ListForCourse(dbc dbctx.Context, userID, courseID uuid.UUID) ([]*types.ProgressItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProgressItem
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("completed_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
