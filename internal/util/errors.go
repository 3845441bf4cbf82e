package util

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind groups errors by how callers should react to them.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindState      ErrorKind = "state"
	KindForbidden  ErrorKind = "forbidden"
	KindTransient  ErrorKind = "transient"
	KindIntegrity  ErrorKind = "integrity"
)

// AppError carries a stable code the UI can map to a message.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func newAppError(kind ErrorKind, code, msg string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: msg}
}

var (
	ErrNotFound               = newAppError(KindNotFound, "not_found", "resource not found")
	ErrCourseNotFound         = newAppError(KindNotFound, "course_not_found", "course not found")
	ErrModuleNotFound         = newAppError(KindNotFound, "module_not_found", "module not found")
	ErrItemNotFound           = newAppError(KindNotFound, "item_not_found", "module item not found")
	ErrQuizNotFound           = newAppError(KindNotFound, "quiz_not_found", "quiz not found")
	ErrAttemptNotFound        = newAppError(KindNotFound, "attempt_not_found", "attempt not found")
	ErrAssignmentNotFound     = newAppError(KindNotFound, "assignment_not_found", "assignment not found")
	ErrSubmissionNotFound     = newAppError(KindNotFound, "submission_not_found", "submission not found")
	ErrGradeNotFound          = newAppError(KindNotFound, "grade_not_found", "grade not found")
	ErrUnknownQuestion        = newAppError(KindNotFound, "unknown_question", "question does not belong to this quiz")
	ErrPermissionDenied       = newAppError(KindForbidden, "permission_denied", "permission denied")
	ErrInvalidOrder           = newAppError(KindValidation, "invalid_order", "item ids must be a permutation of the module's items")
	ErrInvalidAnswer          = newAppError(KindValidation, "invalid_answer", "answer does not match the question type")
	ErrContentAlreadyPlaced   = newAppError(KindValidation, "content_already_placed", "content is already placed in a module")
	ErrContentMismatch        = newAppError(KindValidation, "content_mismatch", "content does not belong to the module's course")
	ErrAttemptLimitExceeded   = newAppError(KindState, "attempt_limit_reached", "attempt limit reached")
	ErrQuizNotAvailable       = newAppError(KindState, "quiz_not_available", "quiz not published or not accessible")
	ErrInvalidStateTransition = newAppError(KindState, "invalid_state_transition", "operation not allowed in the current state")
	ErrModuleLocked           = newAppError(KindState, "module_locked", "module is locked until the previous gating exam is passed")
	ErrModuleExamLocked       = newAppError(KindState, "module_exam_locked", "module exam attempts are exhausted")
	ErrModuleArchived         = newAppError(KindState, "module_archived", "module is archived")
	ErrItemNotReleased        = newAppError(KindState, "item_not_released", "item is not released yet")
	ErrTransientConflict      = newAppError(KindTransient, "transient_conflict", "concurrent update conflict, please retry")
	ErrIntegrityViolation     = newAppError(KindIntegrity, "integrity_violation", "stored data is inconsistent")
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError is returned before any state change when the input is malformed.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(flds ...FieldError) error {
	return &ValidationError{Fields: flds}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Error))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// KindOf reports the kind of err; unknown errors are treated as internal.
func KindOf(err error) ErrorKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// CodeOf returns the stable error code of err, or "internal_error".
func CodeOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "validation_failed"
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "internal_error"
}
