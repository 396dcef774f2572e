package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"firmdocs/internal/domain"
	"firmdocs/internal/metrics"
	"firmdocs/internal/port"
)

// UploadInput is the DTO for creating a document from an uploaded file.
type UploadInput struct {
	Meta           domain.DocumentMeta
	File           domain.FileRef
	IdempotencyKey string
}

// CreateVersionInput is the DTO for appending a new version.
type CreateVersionInput struct {
	DocumentID     uuid.UUID
	File           domain.FileRef
	ChangeNotes    string
	IdempotencyKey string
}

// RestoreVersionInput is the DTO for restoring a historical version.
type RestoreVersionInput struct {
	DocumentID     uuid.UUID
	TargetVersion  int
	IdempotencyKey string
}

// VersionResult is returned by the version-producing operations.
type VersionResult struct {
	Document     *domain.Document        `json:"document"`
	Version      *domain.DocumentVersion `json:"version"`
	RestoredFrom *domain.DocumentVersion `json:"restored_from,omitempty"`
	// Duplicate is set when an identical recent request was answered with
	// the existing version.
	Duplicate bool `json:"duplicate"`
	// Replayed is set when the idempotency token had already completed.
	Replayed bool `json:"replayed"`
}

// DocumentPipeline is the only entry point external callers use. Every call
// is authorized, executed and recorded in the audit trail exactly once,
// whatever its outcome.
type DocumentPipeline interface {
	Upload(ctx context.Context, actor *domain.Actor, input *UploadInput) (*VersionResult, error)
	CreateVersion(ctx context.Context, actor *domain.Actor, input *CreateVersionInput) (*VersionResult, error)
	RestoreVersion(ctx context.Context, actor *domain.Actor, input *RestoreVersionInput) (*VersionResult, error)
	ListVersions(ctx context.Context, actor *domain.Actor, docID uuid.UUID) (iter.Seq2[domain.DocumentVersion, error], error)
	ArchiveDocument(ctx context.Context, actor *domain.Actor, docID uuid.UUID) (*domain.Document, error)
	QueryAuditLog(ctx context.Context, actor *domain.Actor, filter domain.AuditFilter) (iter.Seq2[domain.AuditLogEntry, error], error)
	VerifyAuditChain(ctx context.Context, actor *domain.Actor) (*domain.ChainVerification, error)
}

// PipelineConfig holds pipeline settings.
type PipelineConfig struct {
	TokenTTL time.Duration
}

// operationSpec is the fixed classification of one operation.
type operationSpec struct {
	permission string
	action     string
	stem       string
	entityType domain.EntityType
	severity   domain.Severity
	compliance bool
}

var operationSpecs = map[domain.Operation]operationSpec{
	domain.OpUpload: {
		permission: domain.PermDocumentsUpload, action: domain.AuditDocumentUploaded, stem: "document_upload",
		entityType: domain.EntityDocument, severity: domain.SeverityMedium,
	},
	domain.OpCreateVersion: {
		permission: domain.PermDocumentsVersion, action: domain.AuditDocumentVersionCreated, stem: "document_version_create",
		entityType: domain.EntityDocumentVersion, severity: domain.SeverityMedium,
	},
	domain.OpRestoreVersion: {
		permission: domain.PermDocumentsRestore, action: domain.AuditDocumentVersionRestore, stem: "document_version_restore",
		entityType: domain.EntityDocumentVersion, severity: domain.SeverityHigh, compliance: true,
	},
	domain.OpListVersions: {
		permission: domain.PermDocumentsRead, action: domain.AuditDocumentVersionsListed, stem: "document_versions_list",
		entityType: domain.EntityDocument, severity: domain.SeverityLow,
	},
	domain.OpArchive: {
		permission: domain.PermDocumentsArchive, action: domain.AuditDocumentArchived, stem: "document_archive",
		entityType: domain.EntityDocument, severity: domain.SeverityHigh, compliance: true,
	},
	domain.OpQueryAudit: {
		permission: domain.PermAuditRead, action: domain.AuditLogQueried, stem: "audit_log_query",
		entityType: domain.EntityAuditLog, severity: domain.SeverityMedium, compliance: true,
	},
	domain.OpVerifyAudit: {
		permission: domain.PermAuditRead, action: domain.AuditChainVerified, stem: "audit_chain_verify",
		entityType: domain.EntityAuditLog, severity: domain.SeverityMedium, compliance: true,
	},
}

func (s operationSpec) actionFor(outcome domain.AuditOutcome) string {
	switch outcome {
	case domain.OutcomeCompleted:
		return s.action
	case domain.OutcomeDenied:
		return s.stem + "_denied"
	default:
		return s.stem + "_failed"
	}
}

// severityFor raises denials to at least medium and invariant failures to
// critical.
func (s operationSpec) severityFor(outcome domain.AuditOutcome, err error) domain.Severity {
	switch outcome {
	case domain.OutcomeDenied:
		return domain.MaxSeverity(s.severity, domain.SeverityMedium)
	case domain.OutcomeFailed:
		if errors.Is(err, domain.ErrInvariantViolation) {
			return domain.SeverityCritical
		}
	}
	return s.severity
}

// invocation carries the state of one pipeline call.
type invocation struct {
	op       domain.Operation
	spec     operationSpec
	actor    *domain.Actor
	state    domain.PipelineState
	entityID string
	tokenKey string
	// fingerprint binds tokenKey to the request's target and content.
	fingerprint string
	changes     []domain.FieldChange
	context     map[string]string
}

type documentPipeline struct {
	evaluator PermissionEvaluator
	chain     *VersionChain
	recorder  *AuditRecorder
	tokens    port.IdempotencyStore
	alerter   port.Alerter
	metrics   *metrics.Pipeline
	cfg       PipelineConfig
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewDocumentPipeline creates the mutation pipeline. tokens, alerter and m
// may be nil.
func NewDocumentPipeline(
	evaluator PermissionEvaluator,
	chain *VersionChain,
	recorder *AuditRecorder,
	tokens port.IdempotencyStore,
	alerter port.Alerter,
	m *metrics.Pipeline,
	cfg PipelineConfig,
	logger *slog.Logger,
) DocumentPipeline {
	return &documentPipeline{
		evaluator: evaluator,
		chain:     chain,
		recorder:  recorder,
		tokens:    tokens,
		alerter:   alerter,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("firmdocs/internal/service"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (p *documentPipeline) Upload(ctx context.Context, actor *domain.Actor, input *UploadInput) (*VersionResult, error) {
	inv := p.newInvocation(domain.OpUpload, actor, "", input.IdempotencyKey)
	inv.fingerprint = requestFingerprint(input.Meta.Title, input.Meta.Category, input.File.Hash, input.File.MimeType)
	var result *VersionResult
	err := p.run(ctx, inv, func(ctx context.Context) error {
		if r, ok, err := p.replay(ctx, inv); err != nil || ok {
			result = r
			return err
		}
		meta := input.Meta
		meta.TenantID = actor.TenantID
		file := input.File
		doc, version, err := p.chain.CreateInitialVersion(ctx, &meta, &file, actor)
		if err != nil {
			return err
		}
		inv.entityID = doc.ID.String()
		inv.context["version"] = "1"
		inv.changes = []domain.FieldChange{
			{Field: "current_version", OldValue: "", NewValue: "1"},
			{Field: "is_latest_version", OldValue: "", NewValue: version.ID.String()},
		}
		result = &VersionResult{Document: doc, Version: version}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.completeToken(ctx, inv, result)
	return result, nil
}

func (p *documentPipeline) CreateVersion(ctx context.Context, actor *domain.Actor, input *CreateVersionInput) (*VersionResult, error) {
	inv := p.newInvocation(domain.OpCreateVersion, actor, input.DocumentID.String(), input.IdempotencyKey)
	inv.fingerprint = requestFingerprint(input.DocumentID.String(), input.File.Hash, input.File.MimeType, input.ChangeNotes)
	var result *VersionResult
	err := p.run(ctx, inv, func(ctx context.Context) error {
		if r, ok, err := p.replay(ctx, inv); err != nil || ok {
			result = r
			return err
		}
		file := input.File
		res, err := p.chain.AppendVersion(ctx, actor.TenantID, input.DocumentID, &file, input.ChangeNotes, actor)
		if err != nil {
			return err
		}
		result = p.appendResult(inv, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.completeToken(ctx, inv, result)
	return result, nil
}

func (p *documentPipeline) RestoreVersion(ctx context.Context, actor *domain.Actor, input *RestoreVersionInput) (*VersionResult, error) {
	inv := p.newInvocation(domain.OpRestoreVersion, actor, input.DocumentID.String(), input.IdempotencyKey)
	inv.context["target_version"] = strconv.Itoa(input.TargetVersion)
	inv.fingerprint = requestFingerprint(input.DocumentID.String(), strconv.Itoa(input.TargetVersion))
	var result *VersionResult
	err := p.run(ctx, inv, func(ctx context.Context) error {
		if r, ok, err := p.replay(ctx, inv); err != nil || ok {
			result = r
			return err
		}
		res, target, err := p.chain.Restore(ctx, actor.TenantID, input.DocumentID, input.TargetVersion, actor)
		if err != nil {
			return err
		}
		result = p.appendResult(inv, res)
		result.RestoredFrom = target
		if !res.Duplicate {
			inv.changes = append(inv.changes, domain.FieldChange{
				Field: "restored_from", OldValue: "", NewValue: strconv.Itoa(target.Version),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.completeToken(ctx, inv, result)
	return result, nil
}

// appendResult converts a chain append into a VersionResult and fills in
// the invocation's changes.
func (p *documentPipeline) appendResult(inv *invocation, res *port.AppendResult) *VersionResult {
	inv.context["version"] = strconv.Itoa(res.Version.Version)
	if res.Duplicate {
		inv.context["duplicate"] = "true"
		return &VersionResult{Document: res.Document, Version: res.Version, Duplicate: true}
	}
	inv.changes = []domain.FieldChange{
		{Field: "current_version", OldValue: strconv.Itoa(res.Previous.Version), NewValue: strconv.Itoa(res.Version.Version)},
		{Field: "is_latest_version", OldValue: res.Previous.ID.String(), NewValue: res.Version.ID.String()},
	}
	return &VersionResult{Document: res.Document, Version: res.Version}
}

func (p *documentPipeline) ListVersions(ctx context.Context, actor *domain.Actor, docID uuid.UUID) (iter.Seq2[domain.DocumentVersion, error], error) {
	inv := p.newInvocation(domain.OpListVersions, actor, docID.String(), "")
	var seq iter.Seq2[domain.DocumentVersion, error]
	err := p.run(ctx, inv, func(execCtx context.Context) error {
		latest, err := p.chain.GetLatest(execCtx, actor.TenantID, docID)
		if err != nil {
			return err
		}
		inv.context["latest_version"] = strconv.Itoa(latest.Version)
		seq = p.chain.ListVersions(ctx, actor.TenantID, docID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seq, nil
}

func (p *documentPipeline) ArchiveDocument(ctx context.Context, actor *domain.Actor, docID uuid.UUID) (*domain.Document, error) {
	inv := p.newInvocation(domain.OpArchive, actor, docID.String(), "")
	var doc *domain.Document
	err := p.run(ctx, inv, func(ctx context.Context) error {
		previous, err := p.chain.Archive(ctx, actor.TenantID, docID)
		if err != nil {
			return err
		}
		if previous == domain.DocumentStatusArchived {
			inv.context["already_archived"] = "true"
		} else {
			inv.changes = []domain.FieldChange{
				{Field: "status", OldValue: string(previous), NewValue: string(domain.DocumentStatusArchived)},
			}
		}
		doc, err = p.chain.Document(ctx, actor.TenantID, docID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *documentPipeline) QueryAuditLog(ctx context.Context, actor *domain.Actor, filter domain.AuditFilter) (iter.Seq2[domain.AuditLogEntry, error], error) {
	inv := p.newInvocation(domain.OpQueryAudit, actor, "", "")
	var seq iter.Seq2[domain.AuditLogEntry, error]
	err := p.run(ctx, inv, func(context.Context) error {
		if err := validateAuditFilter(&filter); err != nil {
			return err
		}
		filter.TenantID = actor.TenantID
		describeFilter(inv.context, &filter)
		seq = p.recorder.Query(ctx, filter)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seq, nil
}

func (p *documentPipeline) VerifyAuditChain(ctx context.Context, actor *domain.Actor) (*domain.ChainVerification, error) {
	inv := p.newInvocation(domain.OpVerifyAudit, actor, "", "")
	var result *domain.ChainVerification
	err := p.run(ctx, inv, func(ctx context.Context) error {
		var err error
		inv.entityID = actor.TenantID.String()
		result, err = p.recorder.VerifyChain(ctx, actor.TenantID)
		if err != nil {
			return err
		}
		inv.context["valid"] = strconv.FormatBool(result.Valid)
		inv.context["entries_checked"] = strconv.Itoa(result.EntriesChecked)
		if !result.Valid {
			inv.context["broken_at"] = strconv.FormatInt(result.BrokenAt, 10)
			p.alert(ctx, inv, "audit_chain_broken", result.Reason)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func validateAuditFilter(f *domain.AuditFilter) error {
	f.Search = domain.StorableText(f.Search)
	fields := map[string]string{}
	if f.Severity != "" && !domain.ValidSeverities[f.Severity] {
		fields["severity"] = "must be one of low, medium, high, critical"
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		fields["to"] = "must not be before from"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

func describeFilter(ctx map[string]string, f *domain.AuditFilter) {
	if f.ActorID != nil {
		ctx["filter_actor_id"] = f.ActorID.String()
	}
	if f.EntityType != "" {
		ctx["filter_entity_type"] = string(f.EntityType)
	}
	if f.Severity != "" {
		ctx["filter_severity"] = string(f.Severity)
	}
	if f.IsCompliance != nil {
		ctx["filter_compliance"] = strconv.FormatBool(*f.IsCompliance)
	}
	if f.Search != "" {
		ctx["filter_q"] = f.Search
	}
}

func (p *documentPipeline) newInvocation(op domain.Operation, actor *domain.Actor, entityID, token string) *invocation {
	inv := &invocation{
		op:       op,
		spec:     operationSpecs[op],
		actor:    actor,
		entityID: entityID,
		context:  map[string]string{"operation": string(op)},
	}
	if actor != nil {
		if actor.RequestID != "" {
			inv.context["request_id"] = actor.RequestID
		}
		if actor.UserAgent != "" {
			inv.context["user_agent"] = actor.UserAgent
		}
		if actor.Role != "" {
			inv.context["role"] = actor.Role
		}
		if token != "" {
			inv.tokenKey = fmt.Sprintf("%s:%s:%s:%s", actor.TenantID, actor.ID, op, token)
			inv.context["idempotency_key"] = token
		}
	}
	return inv
}

func (p *documentPipeline) transition(inv *invocation, to domain.PipelineState) {
	p.logger.Debug("pipeline.transition", "operation", inv.op, "from", inv.state, "to", to)
	inv.state = to
}

// run drives one invocation through the state machine. Once Executing
// begins the operation runs to a terminal state regardless of ctx, and the
// audit entry is always attempted.
func (p *documentPipeline) run(ctx context.Context, inv *invocation, exec func(ctx context.Context) error) error {
	start := p.now()
	ctx, span := p.tracer.Start(ctx, "pipeline."+string(inv.op),
		trace.WithAttributes(attribute.String("firmdocs.operation", string(inv.op))))
	defer span.End()

	p.transition(inv, domain.StateRequested)

	var opErr error
	outcome := domain.OutcomeCompleted
	switch {
	case inv.actor == nil:
		opErr = domain.ErrUnauthorized
		outcome = domain.OutcomeDenied
		p.transition(inv, domain.StateDenied)
	default:
		p.transition(inv, domain.StateAuthorizing)
		if !p.evaluator.Evaluate(inv.actor, inv.spec.permission) {
			opErr = fmt.Errorf("%w: %s requires %s", domain.ErrForbidden, inv.op, inv.spec.permission)
			outcome = domain.OutcomeDenied
			p.transition(inv, domain.StateDenied)
			break
		}
		p.transition(inv, domain.StateAuthorized)
		if err := ctx.Err(); err != nil {
			opErr = err
			outcome = domain.OutcomeFailed
			p.transition(inv, domain.StateFailed)
			break
		}
		p.transition(inv, domain.StateExecuting)
		if opErr = exec(context.WithoutCancel(ctx)); opErr != nil {
			outcome = domain.OutcomeFailed
			p.transition(inv, domain.StateFailed)
		} else {
			p.transition(inv, domain.StateCompleted)
		}
	}

	if errors.Is(opErr, domain.ErrInvariantViolation) {
		p.alert(ctx, inv, "invariant_violation", opErr.Error())
	}

	err := opErr
	metricOutcome := string(outcome)
	if recErr := p.record(context.WithoutCancel(ctx), inv, outcome, opErr); recErr != nil {
		p.alert(ctx, inv, "audit_unavailable", recErr.Error())
		if opErr != nil {
			p.logger.Error("pipeline.run: operation error superseded by audit failure",
				"operation", inv.op, "error", opErr)
		}
		err = recErr
		metricOutcome = "audit_unavailable"
	} else {
		p.transition(inv, domain.StateRecorded)
	}

	elapsed := p.now().Sub(start)
	p.metrics.Observe(inv.op, metricOutcome, elapsed)
	span.SetAttributes(
		attribute.String("firmdocs.outcome", metricOutcome),
		attribute.String("firmdocs.entity_id", inv.entityID),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.ErrorKind(err))
	}
	p.logOutcome(inv, metricOutcome, elapsed, err)
	return err
}

func (p *documentPipeline) record(ctx context.Context, inv *invocation, outcome domain.AuditOutcome, opErr error) error {
	inv.context["final_state"] = string(inv.state)
	rec := AuditRecord{
		Action:             inv.spec.actionFor(outcome),
		Outcome:            outcome,
		EntityType:         inv.spec.entityType,
		EntityID:           inv.entityID,
		Severity:           inv.spec.severityFor(outcome, opErr),
		IsComplianceAction: inv.spec.compliance,
		Context:            inv.context,
		ErrorKind:          domain.ErrorKind(opErr),
	}
	if outcome == domain.OutcomeCompleted {
		rec.Changes = inv.changes
	}
	if inv.actor != nil {
		rec.TenantID = inv.actor.TenantID
		rec.ActorID = inv.actor.ID
		rec.IPAddress = inv.actor.IPAddress
	}
	_, err := p.recorder.Record(ctx, rec)
	return err
}

func (p *documentPipeline) logOutcome(inv *invocation, outcome string, elapsed time.Duration, err error) {
	attrs := []any{"operation", inv.op, "outcome", outcome, "entity_id", inv.entityID, "duration", elapsed}
	if inv.actor != nil {
		attrs = append(attrs, "tenant_id", inv.actor.TenantID, "actor_id", inv.actor.ID)
	}
	switch {
	case err == nil:
		p.logger.Info("pipeline.run: completed", attrs...)
	case errors.Is(err, domain.ErrInvariantViolation), errors.Is(err, domain.ErrAuditUnavailable):
		p.logger.Error("pipeline.run: fatal", append(attrs, "error", err)...)
	default:
		p.logger.Warn("pipeline.run: not completed", append(attrs, "error", err)...)
	}
}

func (p *documentPipeline) alert(ctx context.Context, inv *invocation, kind, detail string) {
	if p.alerter == nil {
		return
	}
	a := port.Alert{
		Kind:       kind,
		Operation:  string(inv.op),
		EntityID:   inv.entityID,
		Detail:     detail,
		OccurredAt: p.now(),
	}
	if inv.actor != nil {
		a.TenantID = inv.actor.TenantID
		a.RequestID = inv.actor.RequestID
	}
	if err := p.alerter.Send(context.WithoutCancel(ctx), a); err != nil {
		p.logger.Error("pipeline.alert: failed to deliver alert", "kind", kind, "error", err)
	}
}

// replay answers a request whose idempotency token already completed. A
// token reused for a different request is a validation error.
func (p *documentPipeline) replay(ctx context.Context, inv *invocation) (*VersionResult, bool, error) {
	if p.tokens == nil || inv.tokenKey == "" {
		return nil, false, nil
	}
	rec, err := p.tokens.Get(ctx, inv.tokenKey)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn("pipeline.replay: idempotency lookup failed", "operation", inv.op, "error", err)
		}
		return nil, false, nil
	}
	if rec.Fingerprint != inv.fingerprint {
		inv.context["idempotency_conflict"] = "true"
		return nil, false, domain.NewValidationError(map[string]string{
			"idempotency_key": "already used for a different request",
		})
	}
	tenantID := inv.actor.TenantID
	doc, err := p.chain.Document(ctx, tenantID, rec.DocumentID)
	if err != nil {
		p.logger.Warn("pipeline.replay: stored document unavailable", "document_id", rec.DocumentID, "error", err)
		return nil, false, nil
	}
	version, err := p.chain.Version(ctx, tenantID, rec.DocumentID, rec.Version)
	if err != nil {
		p.logger.Warn("pipeline.replay: stored version unavailable", "document_id", rec.DocumentID, "error", err)
		return nil, false, nil
	}
	inv.entityID = doc.ID.String()
	inv.context["replayed"] = "true"
	inv.context["version"] = strconv.Itoa(version.Version)
	return &VersionResult{Document: doc, Version: version, Replayed: true}, true, nil
}

// completeToken stores the result under the invocation's token. It runs
// only after the audit entry was written.
func (p *documentPipeline) completeToken(ctx context.Context, inv *invocation, result *VersionResult) {
	if p.tokens == nil || inv.tokenKey == "" || result == nil || result.Replayed {
		return
	}
	rec := port.IdempotencyRecord{
		DocumentID:  result.Document.ID,
		Version:     result.Version.Version,
		Fingerprint: inv.fingerprint,
		StoredAt:    p.now(),
	}
	if err := p.tokens.Put(context.WithoutCancel(ctx), inv.tokenKey, rec, p.cfg.TokenTTL); err != nil {
		p.logger.Warn("pipeline.completeToken: failed to store idempotency token", "operation", inv.op, "error", err)
	}
}

// requestFingerprint digests the parts of a request that decide its outcome.
// Storage keys are left out so a retried upload of the same bytes matches.
func requestFingerprint(parts ...string) string {
	h := blake3.New()
	for _, part := range parts {
		_, _ = h.Write([]byte(strconv.Itoa(len(part)) + ":" + part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
