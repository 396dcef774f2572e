// Package memory provides in-process implementations of the repository
// ports. They honour the same atomicity contracts as the PostgreSQL
// implementations and back local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

type documentEntry struct {
	mu       sync.Mutex
	doc      domain.Document
	versions []domain.DocumentVersion
}

type documentRepo struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*documentEntry
	now  func() time.Time
}

// NewDocumentRepo creates an empty in-memory DocumentRepository.
func NewDocumentRepo() port.DocumentRepository {
	return &documentRepo{
		docs: make(map[uuid.UUID]*documentEntry),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// entry returns the document's entry when it belongs to tenantID.
func (r *documentRepo) entry(tenantID, docID uuid.UUID) (*documentEntry, error) {
	r.mu.RLock()
	e, ok := r.docs[docID]
	r.mu.RUnlock()
	if !ok || e.doc.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (r *documentRepo) CreateWithInitialVersion(_ context.Context, doc *domain.Document, version *domain.DocumentVersion) error {
	now := r.now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.CurrentVersion = 1
	version.Version = 1
	version.IsLatestVersion = true
	version.DocumentID = doc.ID
	version.TenantID = doc.TenantID
	version.CreatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.ID]; exists {
		return domain.ErrInvariantViolation
	}
	r.docs[doc.ID] = &documentEntry{
		doc:      cloneDocument(*doc),
		versions: []domain.DocumentVersion{*version},
	}
	return nil
}

func (r *documentRepo) GetByID(_ context.Context, tenantID, docID uuid.UUID) (*domain.Document, error) {
	e, err := r.entry(tenantID, docID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	doc := cloneDocument(e.doc)
	return &doc, nil
}

func (r *documentRepo) AppendVersion(_ context.Context, tenantID, docID uuid.UUID, build port.VersionBuilder) (*port.AppendResult, error) {
	e, err := r.entry(tenantID, docID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	latestIdx := -1
	for i := range e.versions {
		if e.versions[i].IsLatestVersion {
			if latestIdx >= 0 {
				return nil, domain.ErrInvariantViolation
			}
			latestIdx = i
		}
	}
	if latestIdx < 0 {
		return nil, domain.ErrInvariantViolation
	}

	doc := cloneDocument(e.doc)
	previous := e.versions[latestIdx]
	next, err := build(&doc, &previous)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return &port.AppendResult{Document: &doc, Version: &previous, Duplicate: true}, nil
	}

	now := r.now()
	next.ID = uuid.New()
	next.DocumentID = docID
	next.TenantID = tenantID
	next.Version = previous.Version + 1
	next.IsLatestVersion = true
	next.CreatedAt = now

	e.versions[latestIdx].IsLatestVersion = false
	e.versions = append(e.versions, *next)
	e.doc.CurrentVersion = next.Version
	e.doc.UpdatedAt = now

	previous.IsLatestVersion = false
	updated := cloneDocument(e.doc)
	created := *next
	return &port.AppendResult{Document: &updated, Previous: &previous, Version: &created}, nil
}

func (r *documentRepo) GetVersion(_ context.Context, tenantID, docID uuid.UUID, version int) (*domain.DocumentVersion, error) {
	e, err := r.entry(tenantID, docID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.versions {
		if e.versions[i].Version == version {
			v := e.versions[i]
			return &v, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *documentRepo) ListVersions(_ context.Context, tenantID, docID uuid.UUID, before, limit int) ([]domain.DocumentVersion, error) {
	e, err := r.entry(tenantID, docID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.DocumentVersion, 0, limit)
	for i := len(e.versions) - 1; i >= 0 && len(out) < limit; i-- {
		if before > 0 && e.versions[i].Version >= before {
			continue
		}
		out = append(out, e.versions[i])
	}
	return out, nil
}

func (r *documentRepo) LatestVersions(_ context.Context, tenantID, docID uuid.UUID) ([]domain.DocumentVersion, error) {
	e, err := r.entry(tenantID, docID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.DocumentVersion
	for i := range e.versions {
		if e.versions[i].IsLatestVersion {
			out = append(out, e.versions[i])
		}
	}
	return out, nil
}

func (r *documentRepo) UpdateStatus(_ context.Context, tenantID, docID uuid.UUID, status domain.DocumentStatus) (domain.DocumentStatus, error) {
	e, err := r.entry(tenantID, docID)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	previous := e.doc.Status
	e.doc.Status = status
	e.doc.UpdatedAt = r.now()
	return previous, nil
}

func (r *documentRepo) ListRetentionExpired(_ context.Context, now time.Time, limit int) ([]domain.Document, error) {
	r.mu.RLock()
	entries := make([]*documentEntry, 0, len(r.docs))
	for _, e := range r.docs {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var out []domain.Document
	for _, e := range entries {
		e.mu.Lock()
		if domain.RetentionExpired(&e.doc, now) {
			out = append(out, cloneDocument(e.doc))
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RetentionUntil.Before(*out[j].RetentionUntil) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneDocument(d domain.Document) domain.Document {
	if d.Tags != nil {
		d.Tags = append(domain.StringList(nil), d.Tags...)
	}
	return d
}
