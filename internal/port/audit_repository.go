package port

import (
	"context"

	"github.com/google/uuid"

	"firmdocs/internal/domain"
)

// AuditRepository defines the contract for append-only audit persistence.
// There is deliberately no update or delete.
type AuditRepository interface {
	// Append seals entry onto its tenant's hash chain (sequence, prev hash,
	// digest) and stores it. Concurrent appends are safe.
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
	// Query returns up to limit entries matching filter, newest first,
	// strictly after cursor when cursor is non-nil.
	Query(ctx context.Context, filter domain.AuditFilter, cursor *domain.AuditCursor, limit int) ([]domain.AuditLogEntry, error)
	// ListChain returns up to limit entries of a tenant's chain with
	// sequence greater than afterSeq, in ascending sequence order.
	ListChain(ctx context.Context, tenantID uuid.UUID, afterSeq int64, limit int) ([]domain.AuditLogEntry, error)
}
