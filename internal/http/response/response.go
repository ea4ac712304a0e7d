package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursegate-backend/internal/platform/apierr"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope is the body of every non-2xx response. Fields is set for
// validation failures; AlreadyProcessed and Status for a lost approve/reject.
type ErrorEnvelope struct {
	Success          bool                `json:"success"`
	Error            APIError            `json:"error"`
	Fields           []apierr.FieldError `json:"fields,omitempty"`
	AlreadyProcessed bool                `json:"alreadyProcessed,omitempty"`
	Status           string              `json:"status,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// RespondServiceError maps a service-layer error through apierr.Classify.
// Internal errors are logged and masked.
func RespondServiceError(c *gin.Context, log *logger.Logger, err error) {
	classified := apierr.Classify(err)
	env := ErrorEnvelope{Error: APIError{Message: err.Error(), Code: classified.Code}}

	var verr *apierr.ValidationError
	if errors.As(err, &verr) {
		env.Fields = verr.Fields
	}
	var ap *apierr.AlreadyProcessedError
	if errors.As(err, &ap) {
		env.AlreadyProcessed = true
		env.Status = ap.Status
	}
	if classified.Status >= http.StatusInternalServerError {
		if log != nil {
			log.Error("Request failed", "path", c.FullPath(), "error", err)
		}
		env.Error.Message = "internal error"
	}
	c.AbortWithStatusJSON(classified.Status, env)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
