package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/coursegate-backend/internal/data/repos"
	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/http/response"
	"github.com/yungbote/coursegate-backend/internal/platform/apierr"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/services"
)

type PaymentProofHandler struct {
	log          *logger.Logger
	svc          services.PaymentProofService
	maxImageSize int64
}

func NewPaymentProofHandler(log *logger.Logger, svc services.PaymentProofService, maxImageSize int64) *PaymentProofHandler {
	if maxImageSize <= 0 {
		maxImageSize = services.DefaultMaxProofImageBytes
	}
	return &PaymentProofHandler{
		log:          log.With("handler", "PaymentProofHandler"),
		svc:          svc,
		maxImageSize: maxImageSize,
	}
}

// POST /api/payment-proofs (multipart)
// fields: courseId, amount, senderNumber, studentNumber, parentNumber; file: proofImage
func (h *PaymentProofHandler) Submit(c *gin.Context) {
	rd, ok := requireUser(c)
	if !ok {
		return
	}
	// Form fields are small; the cap leaves room for them on top of the image.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImageSize+(1<<20))

	verr := apierr.NewValidationError()
	courseID, err := uuid.Parse(strings.TrimSpace(c.PostForm("courseId")))
	if err != nil {
		verr.Add("courseId", "courseId must be a UUID")
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(c.PostForm("amount")), 64)
	if err != nil {
		verr.Add("amount", "amount must be a number")
	}
	image, filename, err := h.readProofImage(c)
	if err != nil {
		verr.Add("proofImage", err.Error())
	}
	if verr.HasErrors() {
		response.RespondServiceError(c, h.log, verr)
		return
	}

	proof, err := h.svc.Submit(c.Request.Context(), services.SubmitPaymentProofInput{
		StudentID:     rd.UserID,
		CourseID:      courseID,
		Amount:        amount,
		SenderNumber:  c.PostForm("senderNumber"),
		StudentNumber: c.PostForm("studentNumber"),
		ParentNumber:  c.PostForm("parentNumber"),
		ProofImage:    services.ProofImage{Filename: filename, Data: image},
	})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"success": true, "paymentProofId": proof.ID, "paymentProof": proof})
}

// readProofImage reads at most one byte past the ceiling so the service can
// report the size violation.
func (h *PaymentProofHandler) readProofImage(c *gin.Context) ([]byte, string, error) {
	fh, err := c.FormFile("proofImage")
	if err != nil {
		return nil, "", errProofImageMissing
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", errProofImageUnreadable
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxImageSize+1))
	if err != nil {
		return nil, "", errProofImageUnreadable
	}
	return data, fh.Filename, nil
}

type proofImageError string

func (e proofImageError) Error() string { return string(e) }

const (
	errProofImageMissing    proofImageError = "proof image is required"
	errProofImageUnreadable proofImageError = "proof image could not be read"
)

// GET /api/payment-proofs/mine
func (h *PaymentProofHandler) ListMine(c *gin.Context) {
	rd, ok := requireUser(c)
	if !ok {
		return
	}
	proofs, total, err := h.svc.List(c.Request.Context(), repos.PaymentProofFilter{
		StudentID: rd.UserID,
		Limit:     intQuery(c, "limit", 50, 200),
		Offset:    intQuery(c, "offset", 0, 0),
	})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"paymentProofs": proofs, "total": total})
}

// GET /api/payment-proofs?status=&studentId=&courseId=&limit=&offset= (admin)
func (h *PaymentProofHandler) List(c *gin.Context) {
	verr := apierr.NewValidationError()
	filter := repos.PaymentProofFilter{
		Status:    types.PaymentStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		StudentID: optionalUUIDQuery(c, verr, "studentId"),
		CourseID:  optionalUUIDQuery(c, verr, "courseId"),
		Limit:     intQuery(c, "limit", 50, 200),
		Offset:    intQuery(c, "offset", 0, 0),
	}
	if verr.HasErrors() {
		response.RespondServiceError(c, h.log, verr)
		return
	}
	proofs, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"paymentProofs": proofs, "total": total})
}

// GET /api/payment-proofs/:id (admin)
func (h *PaymentProofHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	proof, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	imageURL, err := h.svc.ProofImageURL(c.Request.Context(), id)
	if err != nil {
		// The record is still useful without a viewable image.
		h.log.Warn("Proof image URL unavailable", "payment_proof_id", id, "error", err)
	}
	response.RespondOK(c, gin.H{"paymentProof": proof, "proofImageUrl": imageURL})
}

// POST /api/payment-proofs/:id/approve (admin)
func (h *PaymentProofHandler) Approve(c *gin.Context) {
	rd, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	proof, err := h.svc.Approve(c.Request.Context(), id, rd.UserID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "paymentProof": proof})
}

// POST /api/payment-proofs/:id/reject (admin)
// body: { "reason": "..." }
func (h *PaymentProofHandler) Reject(c *gin.Context) {
	rd, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}
	proof, err := h.svc.Reject(c.Request.Context(), id, rd.UserID, req.Reason)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "paymentProof": proof})
}

// POST /api/payment-proofs/bulk-approve (admin)
// body: { "ids": ["..."] }
func (h *PaymentProofHandler) BulkApprove(c *gin.Context) {
	rd, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	verr := apierr.NewValidationError()
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			verr.Add("ids", "invalid payment proof id "+strconv.Quote(raw))
			continue
		}
		ids = append(ids, id)
	}
	if verr.HasErrors() {
		response.RespondServiceError(c, h.log, verr)
		return
	}
	res, err := h.svc.BulkApprove(c.Request.Context(), ids, rd.UserID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/payment-proofs/statistics?period=day|week|month|year|all (admin)
func (h *PaymentProofHandler) Statistics(c *gin.Context) {
	stats, err := h.svc.Statistics(c.Request.Context(), services.StatisticsFilter{
		Period: services.StatisticsPeriod(c.Query("period")),
	})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, stats)
}
