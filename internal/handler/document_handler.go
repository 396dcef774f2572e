package handler

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"firmdocs/internal/domain"
	"firmdocs/internal/middleware"
	"firmdocs/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

// DocumentHandler exposes the document pipeline operations over HTTP.
type DocumentHandler struct {
	pipeline  service.DocumentPipeline
	content   service.ContentStore
	evaluator service.PermissionEvaluator
	logger    *slog.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(pipeline service.DocumentPipeline, content service.ContentStore, evaluator service.PermissionEvaluator, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{pipeline: pipeline, content: content, evaluator: evaluator, logger: logger}
}

// Upload handles POST /api/v1/documents
// Multipart form: file plus title, description, category, tags, client_id,
// project_id, compliance_id, document_type, retention_until.
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor := middleware.GetActor(c)

	meta, err := parseDocumentMeta(c)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	input := &service.UploadInput{Meta: *meta, IdempotencyKey: c.GetHeader(idempotencyHeader)}
	ref, ok := h.storeFormFile(c, actor, domain.PermDocumentsUpload)
	if !ok {
		return
	}
	if ref != nil {
		input.File = *ref
	}

	result, err := h.pipeline.Upload(c.Request.Context(), actor, input)
	h.releaseUnreferenced(c.Request.Context(), ref, result, err)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	if result.Duplicate || result.Replayed {
		RespondOK(c, result)
		return
	}
	RespondCreated(c, result)
}

// CreateVersion handles POST /api/v1/documents/:id/versions
// Multipart form: file plus change_notes.
func (h *DocumentHandler) CreateVersion(c *gin.Context) {
	actor := middleware.GetActor(c)

	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}

	input := &service.CreateVersionInput{
		DocumentID:     docID,
		ChangeNotes:    c.PostForm("change_notes"),
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	}
	ref, ok := h.storeFormFile(c, actor, domain.PermDocumentsVersion)
	if !ok {
		return
	}
	if ref != nil {
		input.File = *ref
	}

	result, err := h.pipeline.CreateVersion(c.Request.Context(), actor, input)
	h.releaseUnreferenced(c.Request.Context(), ref, result, err)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	if result.Duplicate || result.Replayed {
		RespondOK(c, result)
		return
	}
	RespondCreated(c, result)
}

// Restore handles POST /api/v1/documents/:id/versions/:version/restore
func (h *DocumentHandler) Restore(c *gin.Context) {
	actor := middleware.GetActor(c)

	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		RespondError(c, http.StatusBadRequest, "INVALID_VERSION", "version must be a positive integer")
		return
	}

	result, err := h.pipeline.RestoreVersion(c.Request.Context(), actor, &service.RestoreVersionInput{
		DocumentID:     docID,
		TargetVersion:  version,
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	if result.Duplicate || result.Replayed {
		RespondOK(c, result)
		return
	}
	RespondCreated(c, result)
}

// ListVersions handles GET /api/v1/documents/:id/versions
func (h *DocumentHandler) ListVersions(c *gin.Context) {
	actor := middleware.GetActor(c)

	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}
	offset, limit := parsePagination(c)

	seq, err := h.pipeline.ListVersions(c.Request.Context(), actor, docID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	versions, total, err := collectPage(seq, offset, limit)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondPaginated(c, versions, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Archive handles POST /api/v1/documents/:id/archive
func (h *DocumentHandler) Archive(c *gin.Context) {
	actor := middleware.GetActor(c)

	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}

	doc, err := h.pipeline.ArchiveDocument(c.Request.Context(), actor, docID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, doc)
}

// storeFormFile writes the "file" form field to the content store. It
// returns a nil ref when the request carries no file, or when the actor is
// missing or lacks the required permission, leaving the pipeline to reject
// and record the attempt. ok is false when an error response has already
// been written.
func (h *DocumentHandler) storeFormFile(c *gin.Context, actor *domain.Actor, required string) (ref *domain.FileRef, ok bool) {
	if !h.evaluator.Evaluate(actor, required) {
		return nil, true
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, true
		}
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "malformed multipart form")
		return nil, false
	}
	defer func() { _ = file.Close() }()

	ref, err = h.content.Store(c.Request.Context(), service.ContentInput{
		TenantID: actor.TenantID,
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		HandleError(c, h.logger, err)
		return nil, false
	}
	return ref, true
}

// releaseUnreferenced discards stored bytes that no version points at. Bytes
// are kept when the audit write failed, since the version may exist.
func (h *DocumentHandler) releaseUnreferenced(ctx context.Context, ref *domain.FileRef, result *service.VersionResult, err error) {
	if ref == nil {
		return
	}
	switch {
	case err != nil && errors.Is(err, domain.ErrAuditUnavailable):
		return
	case err == nil && !result.Duplicate && !result.Replayed:
		return
	}
	if discardErr := h.content.Discard(context.WithoutCancel(ctx), ref); discardErr != nil {
		h.logger.Warn("documentHandler: orphaned file not discarded", "key", ref.StorageKey, "error", discardErr)
	}
}

func parseDocumentMeta(c *gin.Context) (*domain.DocumentMeta, error) {
	meta := &domain.DocumentMeta{
		Title:        strings.TrimSpace(c.PostForm("title")),
		Description:  c.PostForm("description"),
		Category:     c.PostForm("category"),
		DocumentType: c.PostForm("document_type"),
		Tags:         parseTags(c.PostFormArray("tags")),
	}

	fields := map[string]string{}
	for name, dst := range map[string]**uuid.UUID{
		"client_id":     &meta.ClientID,
		"project_id":    &meta.ProjectID,
		"compliance_id": &meta.ComplianceID,
	} {
		raw := c.PostForm(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			fields[name] = "must be a UUID"
			continue
		}
		*dst = &id
	}
	if raw := c.PostForm("retention_until"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			fields["retention_until"] = "must be RFC 3339 or YYYY-MM-DD"
		} else {
			meta.RetentionUntil = &t
		}
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}
	return meta, nil
}

// parseTags accepts repeated tags fields and comma-separated lists.
func parseTags(values []string) []string {
	var tags []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}

// parsePagination extracts offset and limit from query params with defaults.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// collectPage drains seq, keeping the [offset, offset+limit) window and
// counting every element.
func collectPage[T any](seq iter.Seq2[T, error], offset, limit int) ([]T, int, error) {
	page := make([]T, 0, limit)
	total := 0
	for item, err := range seq {
		if err != nil {
			return nil, 0, err
		}
		if total >= offset && len(page) < limit {
			page = append(page, item)
		}
		total++
	}
	return page, total, nil
}
