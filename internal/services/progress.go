package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursegate-backend/internal/data/repos"
	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/domain/progress"
	"github.com/yungbote/coursegate-backend/internal/observability"
	"github.com/yungbote/coursegate-backend/internal/platform/apierr"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type ProgressService interface {
	Get(ctx context.Context, userID, courseID uuid.UUID) (*types.ProgressSnapshot, error)
	CompleteVideo(ctx context.Context, userID, courseID, videoID uuid.UUID, watchPercentage *float64) (*types.ProgressSnapshot, error)
	CompleteExam(ctx context.Context, userID, courseID, examID uuid.UUID, score *float64, passed *bool) (*types.ProgressSnapshot, error)
	UncompleteVideo(ctx context.Context, userID, courseID, videoID uuid.UUID) (*types.ProgressSnapshot, error)
	UncompleteExam(ctx context.Context, userID, courseID, examID uuid.UUID) (*types.ProgressSnapshot, error)
}

type progressService struct {
	db       *gorm.DB
	log      *logger.Logger
	records  repos.ProgressRecordRepo
	items    repos.ProgressItemRepo
	courses  repos.CourseRepo
	gate     EnrollmentService
	notifier EnrollmentNotifier
}

func NewProgressService(
	db *gorm.DB,
	log *logger.Logger,
	records repos.ProgressRecordRepo,
	items repos.ProgressItemRepo,
	courses repos.CourseRepo,
	gate EnrollmentService,
	notifier EnrollmentNotifier,
) ProgressService {
	return &progressService{
		db:       db,
		log:      log.With("service", "ProgressService"),
		records:  records,
		items:    items,
		courses:  courses,
		gate:     gate,
		notifier: notifier,
	}
}

// mutation changes item rows and reports whether anything changed.
type mutation func(dbc dbctx.Context, outline types.Outline) (bool, error)

func (s *progressService) Get(ctx context.Context, userID, courseID uuid.UUID) (*types.ProgressSnapshot, error) {
	return s.apply(ctx, userID, courseID, "read", nil)
}

func (s *progressService) CompleteVideo(ctx context.Context, userID, courseID, videoID uuid.UUID, watchPercentage *float64) (*types.ProgressSnapshot, error) {
	if watchPercentage != nil && !inPercentRange(*watchPercentage) {
		return nil, apierr.NewValidationError(apierr.FieldError{Field: "watchPercentage", Message: "watchPercentage must be between 0 and 100"})
	}
	return s.apply(ctx, userID, courseID, "complete_video", func(dbc dbctx.Context, outline types.Outline) (bool, error) {
		if !outline.HasVideo(videoID) {
			return false, &apierr.NotFoundError{Kind: "video", ID: videoID.String()}
		}
		return s.items.Insert(dbc, &types.ProgressItem{
			UserID:          userID,
			CourseID:        courseID,
			ItemType:        types.ItemVideo,
			ItemID:          videoID,
			WatchPercentage: watchPercentage,
		})
	})
}

// CompleteExam records the attempt whether or not it passed.
func (s *progressService) CompleteExam(ctx context.Context, userID, courseID, examID uuid.UUID, score *float64, passed *bool) (*types.ProgressSnapshot, error) {
	if score != nil && !inPercentRange(*score) {
		return nil, apierr.NewValidationError(apierr.FieldError{Field: "score", Message: "score must be between 0 and 100"})
	}
	return s.apply(ctx, userID, courseID, "complete_exam", func(dbc dbctx.Context, outline types.Outline) (bool, error) {
		if !outline.HasExam(examID) {
			return false, &apierr.NotFoundError{Kind: "exam", ID: examID.String()}
		}
		return s.items.Insert(dbc, &types.ProgressItem{
			UserID:   userID,
			CourseID: courseID,
			ItemType: types.ItemExam,
			ItemID:   examID,
			Score:    score,
			Passed:   passed,
		})
	})
}

func (s *progressService) UncompleteVideo(ctx context.Context, userID, courseID, videoID uuid.UUID) (*types.ProgressSnapshot, error) {
	return s.apply(ctx, userID, courseID, "uncomplete_video", func(dbc dbctx.Context, outline types.Outline) (bool, error) {
		if !outline.HasVideo(videoID) {
			return false, &apierr.NotFoundError{Kind: "video", ID: videoID.String()}
		}
		return s.items.Delete(dbc, userID, courseID, types.ItemVideo, videoID)
	})
}

func (s *progressService) UncompleteExam(ctx context.Context, userID, courseID, examID uuid.UUID) (*types.ProgressSnapshot, error) {
	return s.apply(ctx, userID, courseID, "uncomplete_exam", func(dbc dbctx.Context, outline types.Outline) (bool, error) {
		if !outline.HasExam(examID) {
			return false, &apierr.NotFoundError{Kind: "exam", ID: examID.String()}
		}
		return s.items.Delete(dbc, userID, courseID, types.ItemExam, examID)
	})
}

// apply runs mut (nil for a read) and recomputes the ledger from the item
// rows in one transaction. Effective mutations bump the version and notify.
func (s *progressService) apply(ctx context.Context, userID, courseID uuid.UUID, kind string, mut mutation) (*types.ProgressSnapshot, error) {
	if err := s.gate.RequireEnrolled(ctx, userID, courseID); err != nil {
		return nil, err
	}

	var snap types.ProgressSnapshot
	changed := false
	err := dbctx.Transaction(ctx, s.db, func(dbc dbctx.Context) error {
		course, err := s.courses.GetByID(dbc, courseID)
		if err != nil {
			return fmt.Errorf("load course: %w", err)
		}
		if course == nil {
			return &apierr.NotFoundError{Kind: "course", ID: courseID.String()}
		}
		outline, err := s.courses.GetOutline(dbc, courseID)
		if err != nil {
			return fmt.Errorf("load outline: %w", err)
		}
		rec, err := s.records.GetOrCreate(dbc, userID, courseID)
		if err != nil {
			return fmt.Errorf("load progress record: %w", err)
		}
		if mut != nil {
			if changed, err = mut(dbc, outline); err != nil {
				return err
			}
		}
		items, err := s.items.ListForCourse(dbc, userID, courseID)
		if err != nil {
			return fmt.Errorf("list progress items: %w", err)
		}
		snap = progress.Compute(courseID, items, outline.VideoIDs, outline.ExamIDs)

		drifted := rec.TotalItems != snap.TotalItems ||
			rec.CompletedItems != snap.CompletedItems ||
			rec.ProgressPercentage != snap.ProgressPercentage
		if changed || drifted {
			snap.Apply(rec)
			if err := s.records.SaveCounters(dbc, rec, changed); err != nil {
				return fmt.Errorf("save progress record: %w", err)
			}
		}
		snap.Version = rec.Version
		snap.UpdatedAt = rec.UpdatedAt
		if snap.UpdatedAt.IsZero() {
			snap.UpdatedAt = time.Now().UTC()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if mut != nil {
		observability.Current().IncProgressMutation(kind, changed)
	}

	if changed {
		s.log.Debug("Progress changed",
			"user_id", userID,
			"course_id", courseID,
			"completed_items", snap.CompletedItems,
			"total_items", snap.TotalItems,
			"version", snap.Version,
		)
		if s.notifier != nil {
			if nErr := s.notifier.ProgressChanged(ctx, userID, snap); nErr != nil {
				s.log.Warn("Notification delivery failed", "error", nErr, "user_id", userID, "course_id", courseID)
			}
		}
	}
	return &snap, nil
}

func inPercentRange(v float64) bool { return v >= 0 && v <= 100 }
