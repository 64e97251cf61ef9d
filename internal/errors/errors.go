// Package errors defines the domain error type returned across service boundaries.
package errors

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
)

// Code identifies a class of domain failure.
type Code string

const (
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeNotAuthenticated   Code = "NOT_AUTHENTICATED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidStatus      Code = "INVALID_STATUS"
	CodeUploadFailed       Code = "UPLOAD_FAILED"
	CodeRecordInsertFailed Code = "RECORD_INSERT_FAILED"
	CodeUpdateFailed       Code = "UPDATE_FAILED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeEmailTaken         Code = "EMAIL_TAKEN"
	CodeInternal           Code = "INTERNAL"
)

// DomainError is a failure scoped to a single user action.
type DomainError struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

const maxReasonLen = 120

var (
	driverPrefix = regexp.MustCompile(`^(?:pq|ERROR|FATAL|redis):\s*`)
	sqlState     = regexp.MustCompile(`\s*\(SQLSTATE \w+\)$`)
)

// Reason is a one-line summary of the innermost cause, stripped of driver
// prefixes so it can be shown to the user. It is empty without a cause.
func (e *DomainError) Reason() string {
	if e.Err == nil {
		return ""
	}
	cause := e.Err
	for next := stderrors.Unwrap(cause); next != nil; next = stderrors.Unwrap(cause) {
		cause = next
	}
	msg := cause.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = driverPrefix.ReplaceAllString(msg, "")
	msg = strings.TrimSpace(sqlState.ReplaceAllString(msg, ""))
	if r := []rune(msg); len(r) > maxReasonLen {
		msg = string(r[:maxReasonLen-3]) + "..."
	}
	return msg
}

// New creates a DomainError.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Wrap creates a DomainError that keeps err as its cause.
func Wrap(code Code, message string, err error) *DomainError {
	de := &DomainError{Code: code, Message: message, Err: err}
	if err != nil {
		de.Details = err.Error()
	}
	return de
}

// Validation creates a VALIDATION_FAILED error carrying per-field messages.
func Validation(fields map[string]string) *DomainError {
	return &DomainError{
		Code:    CodeValidationFailed,
		Message: "validation failed",
		Fields:  fields,
	}
}

// As extracts a DomainError from err's chain.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the domain code of err, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}
