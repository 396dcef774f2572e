package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

const defaultAuditPageSize = 100

// AuditRecord is the input for recording one audit entry. Severity and
// compliance classification are decided by the caller.
type AuditRecord struct {
	TenantID           uuid.UUID
	ActorID            uuid.UUID
	Action             string
	Outcome            domain.AuditOutcome
	EntityType         domain.EntityType
	EntityID           string
	Severity           domain.Severity
	IsComplianceAction bool
	Changes            []domain.FieldChange
	IPAddress          string
	Context            map[string]string
	ErrorKind          string
}

// AuditRecorderConfig holds audit recorder settings.
type AuditRecorderConfig struct {
	AppendRetries int
	RetryBackoff  time.Duration
	PageSize      int
}

// AuditRecorder appends immutable entries to the audit trail and serves the
// read side. Only the mutation pipeline records.
type AuditRecorder struct {
	repo   port.AuditRepository
	cfg    AuditRecorderConfig
	logger *slog.Logger
	now    func() time.Time
	sleep  func(time.Duration)
}

// NewAuditRecorder creates an AuditRecorder over repo.
func NewAuditRecorder(repo port.AuditRepository, cfg AuditRecorderConfig, logger *slog.Logger) *AuditRecorder {
	if cfg.AppendRetries < 1 {
		cfg.AppendRetries = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultAuditPageSize
	}
	return &AuditRecorder{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		sleep:  time.Sleep,
	}
}

// Record durably appends one entry. It fails only with ErrAuditUnavailable
// once every retry against the store has failed.
func (r *AuditRecorder) Record(ctx context.Context, rec AuditRecord) (*domain.AuditLogEntry, error) {
	if rec.Action == "" || !domain.ValidSeverities[rec.Severity] {
		return nil, fmt.Errorf("%w: malformed audit record (action=%q severity=%q)",
			domain.ErrInvariantViolation, rec.Action, rec.Severity)
	}

	base := domain.AuditLogEntry{
		ID:                 uuid.New(),
		TenantID:           rec.TenantID,
		ActorID:            rec.ActorID,
		Action:             rec.Action,
		Outcome:            rec.Outcome,
		EntityType:         rec.EntityType,
		EntityID:           domain.StorableText(rec.EntityID),
		Timestamp:          domain.AuditTimestamp(r.now()),
		Severity:           rec.Severity,
		IsComplianceAction: rec.IsComplianceAction,
		Changes:            storableChanges(rec.Changes),
		IPAddress:          domain.StorableText(rec.IPAddress),
		Context:            storableContext(rec.Context),
		ErrorKind:          rec.ErrorKind,
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.AppendRetries; attempt++ {
		entry := base
		if lastErr = r.repo.Append(ctx, &entry); lastErr == nil {
			return &entry, nil
		}
		r.logger.Warn("auditRecorder.Record: append failed",
			"attempt", attempt, "action", rec.Action, "tenant_id", rec.TenantID, "error", lastErr)
		if attempt < r.cfg.AppendRetries && r.cfg.RetryBackoff > 0 {
			r.sleep(r.cfg.RetryBackoff * time.Duration(attempt))
		}
	}
	r.logger.Error("auditRecorder.Record: audit store unavailable",
		"action", rec.Action, "tenant_id", rec.TenantID, "entity_id", rec.EntityID, "error", lastErr)
	return nil, fmt.Errorf("%w: %v", domain.ErrAuditUnavailable, lastErr)
}

// Query yields entries matching filter, newest first, fetching pages
// lazily. Each range over the result restarts from the newest entry.
func (r *AuditRecorder) Query(ctx context.Context, filter domain.AuditFilter) iter.Seq2[domain.AuditLogEntry, error] {
	return func(yield func(domain.AuditLogEntry, error) bool) {
		var cursor *domain.AuditCursor
		for {
			page, err := r.repo.Query(ctx, filter, cursor, r.cfg.PageSize)
			if err != nil {
				yield(domain.AuditLogEntry{}, fmt.Errorf("auditRecorder.Query: %w", err))
				return
			}
			for i := range page {
				if !yield(page[i], nil) {
					return
				}
			}
			if len(page) < r.cfg.PageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &domain.AuditCursor{Timestamp: last.Timestamp, Sequence: last.Sequence}
		}
	}
}

// VerifyChain walks the tenant's hash chain from the first entry and
// reports the first broken link, if any.
func (r *AuditRecorder) VerifyChain(ctx context.Context, tenantID uuid.UUID) (*domain.ChainVerification, error) {
	verifier := domain.NewChainVerifier()
	var after int64
	for {
		page, err := r.repo.ListChain(ctx, tenantID, after, r.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("auditRecorder.VerifyChain: %w", err)
		}
		for i := range page {
			if !verifier.Add(page[i]) {
				result := verifier.Result()
				r.logger.Error("auditRecorder.VerifyChain: chain broken",
					"tenant_id", tenantID, "sequence", result.BrokenAt, "reason", result.Reason)
				return &result, nil
			}
		}
		if len(page) < r.cfg.PageSize {
			result := verifier.Result()
			return &result, nil
		}
		after = page[len(page)-1].Sequence
	}
}

func storableContext(in map[string]string) domain.AuditContext {
	if in == nil {
		return nil
	}
	out := make(domain.AuditContext, len(in))
	for k, v := range in {
		out[domain.StorableText(k)] = domain.StorableText(v)
	}
	return out
}

func storableChanges(in []domain.FieldChange) domain.FieldChanges {
	if in == nil {
		return nil
	}
	out := make(domain.FieldChanges, len(in))
	for i, c := range in {
		out[i] = domain.FieldChange{
			Field:    domain.StorableText(c.Field),
			OldValue: domain.StorableText(c.OldValue),
			NewValue: domain.StorableText(c.NewValue),
		}
	}
	return out
}
