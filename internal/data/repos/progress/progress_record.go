package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type ProgressRecordRepo interface {
	// GetOrCreate returns the ledger row, inserting an empty one on first use.
	// The row stays locked until dbc.Tx ends, so concurrent mutations of one
	// ledger run one after the other.
	GetOrCreate(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.ProgressRecord, error)
	// SaveCounters stores derived counters; bump increments the version.
	SaveCounters(dbc dbctx.Context, rec *types.ProgressRecord, bump bool) error
}

type progressRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRecordRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRecordRepo {
	return &progressRecordRepo{db: db, log: baseLog.With("repo", "ProgressRecordRepo")}
}

func (r *progressRecordRepo) GetOrCreate(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.ProgressRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	seed := &types.ProgressRecord{UserID: userID, CourseID: courseID, CreatedAt: now, UpdatedAt: now}
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(seed).Error; err != nil {
		return nil, err
	}
	var rec types.ProgressRecord
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *progressRecordRepo) SaveCounters(dbc dbctx.Context, rec *types.ProgressRecord, bump bool) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"total_items":         rec.TotalItems,
		"completed_items":     rec.CompletedItems,
		"progress_percentage": rec.ProgressPercentage,
		"updated_at":          now,
	}
	if bump {
		updates["version"] = gorm.Expr("version + 1")
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ProgressRecord{}).
		Where("user_id = ? AND course_id = ?", rec.UserID, rec.CourseID).
		Updates(updates).Error; err != nil {
		return err
	}
	var stored types.ProgressRecord
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ?", rec.UserID, rec.CourseID).
		First(&stored).Error; err != nil {
		return err
	}
	*rec = stored
	return nil
}
