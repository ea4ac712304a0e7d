package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursegate-backend/internal/http/response"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/services"
)

type EnrollmentHandler struct {
	log *logger.Logger
	svc services.EnrollmentService
}

func NewEnrollmentHandler(log *logger.Logger, svc services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{log: log.With("handler", "EnrollmentHandler"), svc: svc}
}

// GET /api/enrollments
func (h *EnrollmentHandler) List(c *gin.Context) {
	rd, ok := requireUser(c)
	if !ok {
		return
	}
	overview, err := h.svc.ListForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, overview)
}

// GET /api/enrollments/:courseId
func (h *EnrollmentHandler) Status(c *gin.Context) {
	rd, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "courseId")
	if !ok {
		return
	}
	view, err := h.svc.Status(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, view)
}
