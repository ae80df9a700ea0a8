package question

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies question bank failures.
type ErrorCode string

const (
	CodeStoreNotFound       ErrorCode = "store_not_found"
	CodeSourceNotFound      ErrorCode = "source_not_found"
	CodeMalformedRecord     ErrorCode = "malformed_record"
	CodeConstraintViolation ErrorCode = "constraint_violation"
	CodeIOFailure           ErrorCode = "io_failure"
	CodeNotFound            ErrorCode = "not_found"
	CodeInternal            ErrorCode = "internal"
)

// Error is the canonical coded error returned across package boundaries.
type Error struct {
	Code    ErrorCode
	Op      string
	UID     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	if e.UID != "" {
		op = fmt.Sprintf("%s[%s]", op, e.UID)
	}
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// WithUID attaches the offending record id to a coded error. Uncoded errors are returned unchanged.
func WithUID(err error, uid string) error {
	var qErr *Error
	if !errors.As(err, &qErr) || uid == "" {
		return err
	}
	cp := *qErr
	cp.UID = uid
	return &cp
}

func IsCode(err error, code ErrorCode) bool {
	var qErr *Error
	if !errors.As(err, &qErr) {
		return false
	}
	return qErr.Code == code
}

func CodeOf(err error) ErrorCode {
	var qErr *Error
	if !errors.As(err, &qErr) {
		return ""
	}
	return qErr.Code
}
