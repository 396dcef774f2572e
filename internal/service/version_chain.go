package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

const defaultVersionPageSize = 50

// ContentPolicy bounds what files may enter a version chain.
type ContentPolicy struct {
	MaxSizeBytes     int64
	AllowedMimeTypes []string
}

// Check returns a FileRejectedError when ref violates the policy.
func (p ContentPolicy) Check(ref *domain.FileRef) error {
	if p.MaxSizeBytes > 0 && ref.Size > p.MaxSizeBytes {
		return &domain.FileRejectedError{Reason: fmt.Sprintf("size %d exceeds limit of %d bytes", ref.Size, p.MaxSizeBytes)}
	}
	if len(p.AllowedMimeTypes) == 0 {
		return nil
	}
	for _, m := range p.AllowedMimeTypes {
		if strings.EqualFold(m, ref.MimeType) {
			return nil
		}
	}
	return &domain.FileRejectedError{Reason: fmt.Sprintf("media type %q is not allowed", ref.MimeType)}
}

// VersionChainConfig holds version chain settings.
type VersionChainConfig struct {
	Policy ContentPolicy
	// DuplicateWindow is how long an identical append (same actor, content
	// hash and notes) is answered with the existing version. Zero disables
	// duplicate detection.
	DuplicateWindow time.Duration
	PageSize        int
}

// VersionChain owns each document's append-only sequence of versions and its
// single latest pointer. Only the mutation pipeline calls it.
type VersionChain struct {
	repo   port.DocumentRepository
	cfg    VersionChainConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewVersionChain creates a VersionChain over repo.
func NewVersionChain(repo port.DocumentRepository, cfg VersionChainConfig, logger *slog.Logger) *VersionChain {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultVersionPageSize
	}
	return &VersionChain{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateInitialVersion creates the document and its version 1.
func (c *VersionChain) CreateInitialVersion(ctx context.Context, meta *domain.DocumentMeta, ref *domain.FileRef, actor *domain.Actor) (*domain.Document, *domain.DocumentVersion, error) {
	if err := domain.ValidateMeta(meta); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateFileRef(ref); err != nil {
		return nil, nil, err
	}
	if err := c.cfg.Policy.Check(ref); err != nil {
		return nil, nil, err
	}

	doc := &domain.Document{
		ID:             uuid.New(),
		TenantID:       meta.TenantID,
		Title:          meta.Title,
		Description:    meta.Description,
		Category:       meta.Category,
		Tags:           domain.StringList(meta.Tags),
		ClientID:       meta.ClientID,
		ProjectID:      meta.ProjectID,
		ComplianceID:   meta.ComplianceID,
		DocumentType:   meta.DocumentType,
		MimeType:       ref.MimeType,
		RetentionUntil: meta.RetentionUntil,
		Status:         domain.DocumentStatusActive,
		CreatedBy:      actor.ID,
	}
	version := &domain.DocumentVersion{
		ID:          uuid.New(),
		FileRef:     *ref,
		ChangedBy:   actor.ID,
		ChangeNotes: "Initial upload",
	}
	if err := c.repo.CreateWithInitialVersion(ctx, doc, version); err != nil {
		return nil, nil, fmt.Errorf("versionChain.CreateInitialVersion: %w", err)
	}
	c.logger.Info("versionChain.CreateInitialVersion: document created",
		"tenant_id", doc.TenantID, "document_id", doc.ID, "mime_type", doc.MimeType)
	return doc, version, nil
}

// AppendVersion adds version n+1 and moves the latest pointer to it.
func (c *VersionChain) AppendVersion(ctx context.Context, tenantID, docID uuid.UUID, ref *domain.FileRef, changeNotes string, actor *domain.Actor) (*port.AppendResult, error) {
	changeNotes = strings.TrimSpace(changeNotes)
	if err := domain.ValidateChangeNotes(changeNotes); err != nil {
		return nil, err
	}
	if err := domain.ValidateFileRef(ref); err != nil {
		return nil, err
	}
	if err := c.cfg.Policy.Check(ref); err != nil {
		return nil, err
	}
	return c.append(ctx, tenantID, docID, *ref, changeNotes, actor)
}

// Restore appends a new version whose content is that of targetVersion.
// History is never rewritten.
func (c *VersionChain) Restore(ctx context.Context, tenantID, docID uuid.UUID, targetVersion int, actor *domain.Actor) (*port.AppendResult, *domain.DocumentVersion, error) {
	if targetVersion < 1 {
		return nil, nil, domain.NewValidationError(map[string]string{"target_version": "must be a positive integer"})
	}
	if _, err := c.repo.GetByID(ctx, tenantID, docID); err != nil {
		return nil, nil, err
	}
	target, err := c.repo.GetVersion(ctx, tenantID, docID, targetVersion)
	if err != nil {
		return nil, nil, err
	}
	notes := RestoreNote(targetVersion)
	res, err := c.append(ctx, tenantID, docID, target.FileRef, notes, actor)
	if err != nil {
		return nil, nil, err
	}
	return res, target, nil
}

// RestoreNote is the system change note attached to a restore.
func RestoreNote(targetVersion int) string {
	return fmt.Sprintf("Restored from version %d [system]", targetVersion)
}

func (c *VersionChain) append(ctx context.Context, tenantID, docID uuid.UUID, ref domain.FileRef, notes string, actor *domain.Actor) (*port.AppendResult, error) {
	now := c.now()
	res, err := c.repo.AppendVersion(ctx, tenantID, docID, func(doc *domain.Document, latest *domain.DocumentVersion) (*domain.DocumentVersion, error) {
		if doc.Status == domain.DocumentStatusArchived {
			return nil, domain.ErrDocumentArchived
		}
		if !strings.EqualFold(doc.MimeType, ref.MimeType) {
			return nil, fmt.Errorf("%w: document is %s, file is %s", domain.ErrTypeMismatch, doc.MimeType, ref.MimeType)
		}
		if c.isDuplicate(latest, ref, notes, actor, now) {
			return nil, nil
		}
		return &domain.DocumentVersion{
			FileRef:     ref,
			ChangedBy:   actor.ID,
			ChangeNotes: notes,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		c.logger.Info("versionChain.append: duplicate request answered with existing version",
			"document_id", docID, "version", res.Version.Version)
	}
	return res, nil
}

func (c *VersionChain) isDuplicate(latest *domain.DocumentVersion, ref domain.FileRef, notes string, actor *domain.Actor, now time.Time) bool {
	if c.cfg.DuplicateWindow <= 0 || latest == nil {
		return false
	}
	return latest.ChangedBy == actor.ID &&
		latest.Hash == ref.Hash &&
		latest.ChangeNotes == notes &&
		now.Sub(latest.CreatedAt) < c.cfg.DuplicateWindow
}

// ListVersions yields the document's versions newest first, fetching pages
// lazily. Each range over the result starts again from the newest version.
func (c *VersionChain) ListVersions(ctx context.Context, tenantID, docID uuid.UUID) iter.Seq2[domain.DocumentVersion, error] {
	return func(yield func(domain.DocumentVersion, error) bool) {
		before := 0
		for {
			page, err := c.repo.ListVersions(ctx, tenantID, docID, before, c.cfg.PageSize)
			if err != nil {
				yield(domain.DocumentVersion{}, fmt.Errorf("versionChain.ListVersions: %w", err))
				return
			}
			for i := range page {
				if !yield(page[i], nil) {
					return
				}
			}
			if len(page) < c.cfg.PageSize {
				return
			}
			before = page[len(page)-1].Version
		}
	}
}

// GetLatest returns the unique latest version. Any other count is an
// invariant violation and is never resolved here.
func (c *VersionChain) GetLatest(ctx context.Context, tenantID, docID uuid.UUID) (*domain.DocumentVersion, error) {
	latest, err := c.repo.LatestVersions(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	if len(latest) != 1 {
		c.logger.Error("versionChain.GetLatest: latest pointer invariant broken",
			"tenant_id", tenantID, "document_id", docID, "latest_count", len(latest))
		return nil, fmt.Errorf("%w: document %s has %d latest versions", domain.ErrInvariantViolation, docID, len(latest))
	}
	return &latest[0], nil
}

// Version returns one historical version.
func (c *VersionChain) Version(ctx context.Context, tenantID, docID uuid.UUID, version int) (*domain.DocumentVersion, error) {
	return c.repo.GetVersion(ctx, tenantID, docID, version)
}

// Document returns the document's current descriptive state.
func (c *VersionChain) Document(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error) {
	return c.repo.GetByID(ctx, tenantID, docID)
}

// Archive flags the document archived and returns its previous status.
func (c *VersionChain) Archive(ctx context.Context, tenantID, docID uuid.UUID) (domain.DocumentStatus, error) {
	return c.repo.UpdateStatus(ctx, tenantID, docID, domain.DocumentStatusArchived)
}

// RetentionExpired returns active documents whose retention date has passed.
func (c *VersionChain) RetentionExpired(ctx context.Context, limit int) ([]domain.Document, error) {
	return c.repo.ListRetentionExpired(ctx, c.now(), limit)
}
