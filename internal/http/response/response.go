package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/questionbank/internal/domain/question"
)

const CodeInvalidRequest = "invalid_request"

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondQuestionError writes err with the status its question error code maps to.
func RespondQuestionError(c *gin.Context, err error) {
	code := question.CodeOf(err)
	if code == "" {
		code = question.CodeInternal
	}
	msg := err
	var qErr *question.Error
	if errors.As(err, &qErr) && code == question.CodeInternal {
		// Driver detail stays in the logs.
		msg = errors.New("internal error")
	}
	RespondError(c, StatusForCode(code), string(code), msg)
}

func StatusForCode(code question.ErrorCode) int {
	switch code {
	case question.CodeMalformedRecord:
		return http.StatusBadRequest
	case question.CodeConstraintViolation:
		return http.StatusConflict
	case question.CodeNotFound:
		return http.StatusNotFound
	case question.CodeIOFailure, question.CodeStoreNotFound:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
