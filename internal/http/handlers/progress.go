package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/http/response"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/services"
)

type ProgressHandler struct {
	log *logger.Logger
	svc services.ProgressService
}

func NewProgressHandler(log *logger.Logger, svc services.ProgressService) *ProgressHandler {
	return &ProgressHandler{log: log.With("handler", "ProgressHandler"), svc: svc}
}

// itemCall runs fn for the caller on the :courseId route, and when itemParam
// is set, on the parsed item id as well.
func (h *ProgressHandler) itemCall(c *gin.Context, itemParam string, fn func(ctx context.Context, userID, courseID, itemID uuid.UUID) (*types.ProgressSnapshot, error)) {
	rd, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "courseId")
	if !ok {
		return
	}
	var itemID uuid.UUID
	if itemParam != "" {
		if itemID, ok = uuidParam(c, itemParam); !ok {
			return
		}
	}
	snap, err := fn(c.Request.Context(), rd.UserID, courseID, itemID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "progress": snap})
}

// GET /api/course-progress/:courseId
func (h *ProgressHandler) Get(c *gin.Context) {
	h.itemCall(c, "", func(ctx context.Context, userID, courseID, _ uuid.UUID) (*types.ProgressSnapshot, error) {
		return h.svc.Get(ctx, userID, courseID)
	})
}

// POST /api/course-progress/:courseId/video/:videoId/complete
// body (optional): { "watchPercentage": 87.5 }
func (h *ProgressHandler) CompleteVideo(c *gin.Context) {
	var req struct {
		WatchPercentage *float64 `json:"watchPercentage"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.itemCall(c, "videoId", func(ctx context.Context, userID, courseID, videoID uuid.UUID) (*types.ProgressSnapshot, error) {
		return h.svc.CompleteVideo(ctx, userID, courseID, videoID, req.WatchPercentage)
	})
}

// POST /api/course-progress/:courseId/exam/:examId/complete
// body (optional): { "score": 80, "passed": true }
func (h *ProgressHandler) CompleteExam(c *gin.Context) {
	var req struct {
		Score  *float64 `json:"score"`
		Passed *bool    `json:"passed"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.itemCall(c, "examId", func(ctx context.Context, userID, courseID, examID uuid.UUID) (*types.ProgressSnapshot, error) {
		return h.svc.CompleteExam(ctx, userID, courseID, examID, req.Score, req.Passed)
	})
}

// DELETE /api/course-progress/:courseId/video/:videoId
func (h *ProgressHandler) UncompleteVideo(c *gin.Context) {
	h.itemCall(c, "videoId", h.svc.UncompleteVideo)
}

// DELETE /api/course-progress/:courseId/exam/:examId
func (h *ProgressHandler) UncompleteExam(c *gin.Context) {
	h.itemCall(c, "examId", h.svc.UncompleteExam)
}
