package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

type auditRepo struct {
	mu     sync.RWMutex
	chains map[uuid.UUID][]domain.AuditLogEntry
}

// NewAuditRepo creates an empty in-memory AuditRepository.
func NewAuditRepo() port.AuditRepository {
	return &auditRepo{chains: make(map[uuid.UUID][]domain.AuditLogEntry)}
}

func (r *auditRepo) Append(_ context.Context, entry *domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chain := r.chains[entry.TenantID]
	var head *domain.AuditLogEntry
	if n := len(chain); n > 0 {
		head = &chain[n-1]
	}
	domain.SealAuditEntry(entry, head)
	r.chains[entry.TenantID] = append(chain, cloneEntry(*entry))
	return nil
}

func (r *auditRepo) Query(_ context.Context, filter domain.AuditFilter, cursor *domain.AuditCursor, limit int) ([]domain.AuditLogEntry, error) {
	r.mu.RLock()
	var matched []domain.AuditLogEntry
	for _, e := range r.chains[filter.TenantID] {
		if matches(&e, filter) {
			matched = append(matched, cloneEntry(e))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return sortsBefore(matched[i].Timestamp, matched[i].Sequence, matched[j].Timestamp, matched[j].Sequence)
	})

	out := make([]domain.AuditLogEntry, 0, limit)
	for i := range matched {
		if cursor != nil && !sortsBefore(cursor.Timestamp, cursor.Sequence, matched[i].Timestamp, matched[i].Sequence) {
			continue
		}
		out = append(out, matched[i])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *auditRepo) ListChain(_ context.Context, tenantID uuid.UUID, afterSeq int64, limit int) ([]domain.AuditLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AuditLogEntry, 0, limit)
	for _, e := range r.chains[tenantID] {
		if e.Sequence <= afterSeq {
			continue
		}
		out = append(out, cloneEntry(e))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// sortsBefore reports whether (ts, seq) comes strictly before (ots, oseq) in
// newest-first order.
func sortsBefore(ts time.Time, seq int64, ots time.Time, oseq int64) bool {
	if !ts.Equal(ots) {
		return ts.After(ots)
	}
	return seq > oseq
}

func matches(e *domain.AuditLogEntry, f domain.AuditFilter) bool {
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.IsCompliance != nil && e.IsComplianceAction != *f.IsCompliance {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := strings.ToLower(strings.Join([]string{
			e.Action, string(e.EntityType), e.EntityID, e.ActorID.String(),
		}, " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

func cloneEntry(e domain.AuditLogEntry) domain.AuditLogEntry {
	if e.Changes != nil {
		e.Changes = append(domain.FieldChanges(nil), e.Changes...)
	}
	if e.Context != nil {
		ctx := make(domain.AuditContext, len(e.Context))
		for k, v := range e.Context {
			ctx[k] = v
		}
		e.Context = ctx
	}
	return e
}
