package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"firmdocs/internal/domain"
	"firmdocs/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *PagMeta  `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data any, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
// Invariant violations and audit outages are reported as an opaque system error.
func MapDomainError(err error) (status int, code, msg string) {
	var rejected *domain.FileRejectedError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "authentication required"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "insufficient permission for this action"
	case errors.Is(err, domain.ErrDocumentArchived):
		return http.StatusConflict, "DOCUMENT_ARCHIVED", "document is archived"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrTypeMismatch):
		return http.StatusUnprocessableEntity, "TYPE_MISMATCH", "file type does not match the document's existing versions"
	case errors.As(err, &rejected):
		return http.StatusBadRequest, "FILE_REJECTED", rejected.Reason
	case errors.Is(err, domain.ErrFileRejected):
		return http.StatusBadRequest, "FILE_REJECTED", "file rejected by content policy"
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusInternalServerError, "UPLOAD_FAILED", "file upload to storage failed"
	default:
		return http.StatusInternalServerError, "SYSTEM_ERROR", "system error; the incident has been reported"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, logger *slog.Logger, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		logger.Error("handler: internal error",
			"request_id", middleware.GetRequestID(c), "kind", domain.ErrorKind(err), "error", err)
	}
	apiErr := &APIError{Code: code, Message: msg}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		apiErr.Fields = ve.Fields
	}
	c.JSON(status, APIResponse{Success: false, Error: apiErr})
}
