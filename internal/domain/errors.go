package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("resource not found")
	ErrTypeMismatch       = errors.New("file type does not match document history")
	ErrFileRejected       = errors.New("file rejected by content policy")
	ErrInvariantViolation = errors.New("internal invariant violated")
	ErrAuditUnavailable   = errors.New("audit trail unavailable")
	ErrDocumentArchived   = errors.New("document is archived")
	ErrUploadFailed       = errors.New("file upload to storage failed")
)

// FieldError is a single field-level reason attached to a ValidationError.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level reasons and matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError from a field -> message map.
func NewValidationError(fields map[string]string) *ValidationError {
	ve := &ValidationError{}
	for f, m := range fields {
		ve.Fields = append(ve.Fields, FieldError{Field: f, Message: m})
	}
	sort.Slice(ve.Fields, func(i, j int) bool { return ve.Fields[i].Field < ve.Fields[j].Field })
	return ve
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FileRejectedError explains why the content policy refused a file.
type FileRejectedError struct {
	Reason string
}

func (e *FileRejectedError) Error() string {
	return "file rejected: " + e.Reason
}

func (e *FileRejectedError) Is(target error) bool {
	return target == ErrFileRejected
}

// ErrorKind returns the taxonomy name of err, used in audit entries and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrDocumentArchived):
		return "document_archived"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrFileRejected):
		return "file_rejected"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrAuditUnavailable):
		return "audit_unavailable"
	default:
		return "internal_error"
	}
}
