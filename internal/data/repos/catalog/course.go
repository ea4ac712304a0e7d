package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type CourseRepo interface {
	Create(dbc dbctx.Context, courses []*types.Course) ([]*types.Course, error)
	CreateVideos(dbc dbctx.Context, videos []*types.CourseVideo) error
	CreateExams(dbc dbctx.Context, exams []*types.CourseExam) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Course, error)
	GetOutline(dbc dbctx.Context, courseID uuid.UUID) (types.Outline, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *courseRepo) Create(dbc dbctx.Context, courses []*types.Course) ([]*types.Course, error) {
	if len(courses) == 0 {
		return []*types.Course{}, nil
	}
	if err := r.tx(dbc).Create(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepo) CreateVideos(dbc dbctx.Context, videos []*types.CourseVideo) error {
	if len(videos) == 0 {
		return nil
	}
	return r.tx(dbc).Create(&videos).Error
}

func (r *courseRepo) CreateExams(dbc dbctx.Context, exams []*types.CourseExam) error {
	if len(exams) == 0 {
		return nil
	}
	return r.tx(dbc).Create(&exams).Error
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *courseRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Course, error) {
	var out []*types.Course
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetOutline returns the ids of every completable item, ordered by position.
func (r *courseRepo) GetOutline(dbc dbctx.Context, courseID uuid.UUID) (types.Outline, error) {
	out := types.Outline{CourseID: courseID, VideoIDs: []uuid.UUID{}, ExamIDs: []uuid.UUID{}}
	if err := r.tx(dbc).
		Model(&types.CourseVideo{}).
		Where("course_id = ?", courseID).
		Order("position ASC").
		Pluck("id", &out.VideoIDs).Error; err != nil {
		return out, err
	}
	if err := r.tx(dbc).
		Model(&types.CourseExam{}).
		Where("course_id = ?", courseID).
		Order("position ASC").
		Pluck("id", &out.ExamIDs).Error; err != nil {
		return out, err
	}
	return out, nil
}
