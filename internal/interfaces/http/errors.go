package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/garyjia/approval-workflow/internal/domain/apperr"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	// Details lists the failed fields of a rejected request
	Details []string `json:"details,omitempty"`
}

// StatusOf maps an error kind to its HTTP status
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// respondError writes a service error. Internal causes stay in the log.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status := StatusOf(err)
	kind := apperr.KindOf(err)

	message := apperr.MessageOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Failed to "+op, "error", err, "request_id", c.GetString(requestIDKey))
		message = "internal error"
	}

	c.JSON(status, Response{
		Success: false,
		Error:   message,
		Code:    kind.String(),
	})
}

// respondBindError writes a 400 for a request that failed binding or validation
func respondBindError(c *gin.Context, err error) {
	resp := Response{
		Success: false,
		Error:   "invalid request",
		Code:    apperr.KindValidation.String(),
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			resp.Details = append(resp.Details, describeFieldError(fe))
		}
	} else {
		resp.Details = []string{err.Error()}
	}

	c.JSON(http.StatusBadRequest, resp)
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "leave_type":
		return field + " must be 1 (personal), 2 (sick), 3 (annual) or 4 (compensatory)"
	case "expense_type":
		return field + " must be 1 (travel), 2 (meal), 3 (office) or 4 (other)"
	case "amount":
		return field + " must be a positive amount with at most two decimals"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gtfield", "gtefield":
		return fmt.Sprintf("%s must not be before %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", field, fe.Tag())
	}
}
