package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"firmdocs/internal/auditexport"
	"firmdocs/internal/domain"
	"firmdocs/internal/middleware"
	"firmdocs/internal/service"
)

// AuditHandler serves the read side of the audit trail.
type AuditHandler struct {
	pipeline service.DocumentPipeline
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(pipeline service.DocumentPipeline, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{pipeline: pipeline, logger: logger, now: time.Now}
}

// Query handles GET /api/v1/audit
// Filters: actor_id, entity_type, severity, compliance, q, from, to.
func (h *AuditHandler) Query(c *gin.Context) {
	filter, err := parseAuditFilter(c)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	offset, limit := parsePagination(c)

	seq, err := h.pipeline.QueryAuditLog(c.Request.Context(), middleware.GetActor(c), *filter)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	entries, total, err := collectPage(seq, offset, limit)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondPaginated(c, entries, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Export handles GET /api/v1/audit/export?format=csv|xlsx
// Accepts the same filters as Query and streams every matching entry.
func (h *AuditHandler) Export(c *gin.Context) {
	format, err := auditexport.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	filter, err := parseAuditFilter(c)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	seq, err := h.pipeline.QueryAuditLog(c.Request.Context(), middleware.GetActor(c), *filter)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", `attachment; filename="`+auditexport.BuildFilename(format, h.now())+`"`)
	c.Status(http.StatusOK)

	n, err := auditexport.Export(c.Writer, format, seq)
	if err != nil {
		h.logger.Error("auditHandler.Export: export aborted",
			"request_id", middleware.GetRequestID(c), "rows", n, "error", err)
		_ = c.Error(err)
		return
	}
	h.logger.Info("auditHandler.Export: export written",
		"request_id", middleware.GetRequestID(c), "format", format, "rows", n)
}

// Verify handles GET /api/v1/audit/verify
func (h *AuditHandler) Verify(c *gin.Context) {
	result, err := h.pipeline.VerifyAuditChain(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, result)
}

func parseAuditFilter(c *gin.Context) (*domain.AuditFilter, error) {
	filter := &domain.AuditFilter{
		EntityType: domain.EntityType(c.Query("entity_type")),
		Severity:   domain.Severity(c.Query("severity")),
		Search:     strings.TrimSpace(c.Query("q")),
	}

	fields := map[string]string{}
	if raw := c.Query("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			fields["actor_id"] = "must be a UUID"
		} else {
			filter.ActorID = &id
		}
	}
	if raw := c.Query("compliance"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fields["compliance"] = "must be true or false"
		} else {
			filter.IsCompliance = &v
		}
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := parseTime(raw)
		if err != nil {
			fields[name] = "must be RFC 3339 or YYYY-MM-DD"
			continue
		}
		*dst = &t
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}
	return filter, nil
}
