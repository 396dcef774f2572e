package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

const auditColumns = `id, tenant_id, sequence, actor_id, action, outcome, entity_type, entity_id,
	"timestamp", severity, is_compliance_action, changes, ip_address, context, error_kind,
	prev_hash, hash`

type auditRepo struct {
	db *sqlx.DB
}

// NewAuditRepo creates a new PostgreSQL-backed AuditRepository. Appends for
// one tenant are serialized with a transaction-scoped advisory lock so the
// hash chain has no forks.
func NewAuditRepo(db *sqlx.DB) port.AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("auditRepo.Append begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, entry.TenantID.String()); err != nil {
		return fmt.Errorf("auditRepo.Append lock: %w", err)
	}

	var head domain.AuditLogEntry
	var prev *domain.AuditLogEntry
	err = tx.GetContext(ctx, &head,
		`SELECT sequence, hash FROM audit_log WHERE tenant_id = $1 ORDER BY sequence DESC LIMIT 1`,
		entry.TenantID)
	switch {
	case err == nil:
		prev = &head
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("auditRepo.Append head: %w", err)
	}

	domain.SealAuditEntry(entry, prev)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_log (`+auditColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		entry.ID, entry.TenantID, entry.Sequence, entry.ActorID, entry.Action, entry.Outcome,
		entry.EntityType, entry.EntityID, entry.Timestamp, entry.Severity, entry.IsComplianceAction,
		entry.Changes, entry.IPAddress, entry.Context, entry.ErrorKind, entry.PrevHash, entry.Hash)
	if err != nil {
		return fmt.Errorf("auditRepo.Append insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("auditRepo.Append commit: %w", err)
	}
	return nil
}

func (r *auditRepo) Query(ctx context.Context, filter domain.AuditFilter, cursor *domain.AuditCursor, limit int) ([]domain.AuditLogEntry, error) {
	where, args := buildAuditWhere(filter)
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.Sequence)
		where = append(where, fmt.Sprintf(`("timestamp", sequence) < ($%d, $%d)`, len(args)-1, len(args)))
	}
	args = append(args, limit)
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY "timestamp" DESC, sequence DESC LIMIT $%d`, len(args))

	var entries []domain.AuditLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("auditRepo.Query: %w", err)
	}
	return entries, nil
}

func (r *auditRepo) ListChain(ctx context.Context, tenantID uuid.UUID, afterSeq int64, limit int) ([]domain.AuditLogEntry, error) {
	var entries []domain.AuditLogEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT `+auditColumns+` FROM audit_log
		 WHERE tenant_id = $1 AND sequence > $2
		 ORDER BY sequence ASC LIMIT $3`, tenantID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListChain: %w", err)
	}
	return entries, nil
}

// buildAuditWhere renders the filter as positional predicates. The tenant
// predicate is always first.
func buildAuditWhere(f domain.AuditFilter) ([]string, []any) {
	where := []string{"tenant_id = $1"}
	args := []any{f.TenantID}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ActorID != nil {
		add("actor_id = $%d", *f.ActorID)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if f.IsCompliance != nil {
		add("is_compliance_action = $%d", *f.IsCompliance)
	}
	if f.From != nil {
		add(`"timestamp" >= $%d`, *f.From)
	}
	if f.To != nil {
		add(`"timestamp" <= $%d`, *f.To)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(action ILIKE $%d OR entity_type ILIKE $%d OR entity_id ILIKE $%d OR actor_id::text ILIKE $%d)",
			n, n, n, n))
	}
	return where, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
