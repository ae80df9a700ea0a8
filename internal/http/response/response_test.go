package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/questionbank/internal/domain/question"
)

func TestRespondQuestionError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"malformed", question.NewError(question.CodeMalformedRecord, "question.save", "bad answer", nil), http.StatusBadRequest, "malformed_record", "question.save: bad answer (malformed_record)"},
		{"constraint", question.NewError(question.CodeConstraintViolation, "question.save", "dup", nil), http.StatusConflict, "constraint_violation", ""},
		{"not_found", question.NewError(question.CodeNotFound, "question.delete", "gone", nil), http.StatusNotFound, "not_found", ""},
		{"io", question.NewError(question.CodeIOFailure, "question.save", "disk", nil), http.StatusServiceUnavailable, "io_failure", ""},
		{"internal", question.Wrap(question.CodeInternal, "question.save", errors.New("driver said no")), http.StatusInternalServerError, "internal", "internal error"},
		{"uncoded", errors.New("plain"), http.StatusInternalServerError, "internal", "plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			RespondQuestionError(c, tc.err)

			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d", tc.status, rec.Code)
			}
			var env ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.Error.Code != tc.code {
				t.Fatalf("code: want=%s got=%s", tc.code, env.Error.Code)
			}
			if tc.message != "" && env.Error.Message != tc.message {
				t.Fatalf("message: want=%q got=%q", tc.message, env.Error.Message)
			}
		})
	}
}
