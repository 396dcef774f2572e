package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

const documentColumns = `id, tenant_id, title, description, category, tags,
	client_id, project_id, compliance_id, document_type, mime_type,
	retention_until, status, current_version, created_by, created_at, updated_at`

const versionColumns = `id, document_id, tenant_id, version,
	file_key, original_name, extension, mime_type, file_size, content_hash,
	changed_by, change_notes, is_latest_version, created_at`

const insertVersionSQL = `INSERT INTO document_versions (` + versionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
// AppendVersion serializes per document with SELECT ... FOR UPDATE on the
// documents row.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) CreateWithInitialVersion(ctx context.Context, doc *domain.Document, version *domain.DocumentVersion) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.CurrentVersion = 1
	version.Version = 1
	version.IsLatestVersion = true
	version.DocumentID = doc.ID
	version.TenantID = doc.TenantID
	version.CreatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("documentRepo.CreateWithInitialVersion begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		doc.ID, doc.TenantID, doc.Title, doc.Description, doc.Category, doc.Tags,
		doc.ClientID, doc.ProjectID, doc.ComplianceID, doc.DocumentType, doc.MimeType,
		doc.RetentionUntil, doc.Status, doc.CurrentVersion, doc.CreatedBy, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("documentRepo.CreateWithInitialVersion document: %w", err)
	}
	if err := insertVersion(ctx, tx, version); err != nil {
		return fmt.Errorf("documentRepo.CreateWithInitialVersion version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("documentRepo.CreateWithInitialVersion commit: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND tenant_id = $2`, docID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) AppendVersion(ctx context.Context, tenantID, docID uuid.UUID, build port.VersionBuilder) (*port.AppendResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.AppendVersion begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var doc domain.Document
	err = tx.GetContext(ctx, &doc,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, docID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("documentRepo.AppendVersion lock: %w", err)
	}

	var latest []domain.DocumentVersion
	err = tx.SelectContext(ctx, &latest,
		`SELECT `+versionColumns+` FROM document_versions
		 WHERE document_id = $1 AND tenant_id = $2 AND is_latest_version`, docID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.AppendVersion latest: %w", err)
	}
	if len(latest) != 1 {
		return nil, fmt.Errorf("%w: document %s has %d latest versions", domain.ErrInvariantViolation, docID, len(latest))
	}
	previous := latest[0]

	next, err := build(&doc, &previous)
	if err != nil {
		return nil, err
	}
	if next == nil {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("documentRepo.AppendVersion commit: %w", err)
		}
		return &port.AppendResult{Document: &doc, Version: &previous, Duplicate: true}, nil
	}

	now := time.Now().UTC()
	next.ID = uuid.New()
	next.DocumentID = docID
	next.TenantID = tenantID
	next.Version = previous.Version + 1
	next.IsLatestVersion = true
	next.CreatedAt = now

	if _, err := tx.ExecContext(ctx,
		`UPDATE document_versions SET is_latest_version = FALSE WHERE id = $1`, previous.ID); err != nil {
		return nil, fmt.Errorf("documentRepo.AppendVersion clear latest: %w", err)
	}
	if err := insertVersion(ctx, tx, next); err != nil {
		return nil, fmt.Errorf("documentRepo.AppendVersion insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET current_version = $1, updated_at = $2 WHERE id = $3`,
		next.Version, now, docID); err != nil {
		return nil, fmt.Errorf("documentRepo.AppendVersion document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("documentRepo.AppendVersion commit: %w", err)
	}

	doc.CurrentVersion = next.Version
	doc.UpdatedAt = now
	previous.IsLatestVersion = false
	return &port.AppendResult{Document: &doc, Previous: &previous, Version: next}, nil
}

func (r *documentRepo) GetVersion(ctx context.Context, tenantID, docID uuid.UUID, version int) (*domain.DocumentVersion, error) {
	var v domain.DocumentVersion
	err := r.db.GetContext(ctx, &v,
		`SELECT `+versionColumns+` FROM document_versions
		 WHERE document_id = $1 AND tenant_id = $2 AND version = $3`, docID, tenantID, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetVersion: %w", err)
	}
	return &v, nil
}

func (r *documentRepo) ListVersions(ctx context.Context, tenantID, docID uuid.UUID, before, limit int) ([]domain.DocumentVersion, error) {
	var versions []domain.DocumentVersion
	var err error
	if before > 0 {
		err = r.db.SelectContext(ctx, &versions,
			`SELECT `+versionColumns+` FROM document_versions
			 WHERE document_id = $1 AND tenant_id = $2 AND version < $3
			 ORDER BY version DESC LIMIT $4`, docID, tenantID, before, limit)
	} else {
		err = r.db.SelectContext(ctx, &versions,
			`SELECT `+versionColumns+` FROM document_versions
			 WHERE document_id = $1 AND tenant_id = $2
			 ORDER BY version DESC LIMIT $3`, docID, tenantID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("documentRepo.ListVersions: %w", err)
	}
	if len(versions) == 0 && before <= 0 {
		if _, err := r.GetByID(ctx, tenantID, docID); err != nil {
			return nil, err
		}
	}
	return versions, nil
}

func (r *documentRepo) LatestVersions(ctx context.Context, tenantID, docID uuid.UUID) ([]domain.DocumentVersion, error) {
	var versions []domain.DocumentVersion
	err := r.db.SelectContext(ctx, &versions,
		`SELECT `+versionColumns+` FROM document_versions
		 WHERE document_id = $1 AND tenant_id = $2 AND is_latest_version`, docID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.LatestVersions: %w", err)
	}
	if len(versions) == 0 {
		if _, err := r.GetByID(ctx, tenantID, docID); err != nil {
			return nil, err
		}
	}
	return versions, nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, tenantID, docID uuid.UUID, status domain.DocumentStatus) (domain.DocumentStatus, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("documentRepo.UpdateStatus begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var previous domain.DocumentStatus
	err = tx.GetContext(ctx, &previous,
		`SELECT status FROM documents WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, docID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("documentRepo.UpdateStatus lock: %w", err)
	}
	if previous != status {
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
			status, time.Now().UTC(), docID); err != nil {
			return "", fmt.Errorf("documentRepo.UpdateStatus: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("documentRepo.UpdateStatus commit: %w", err)
	}
	return previous, nil
}

func (r *documentRepo) ListRetentionExpired(ctx context.Context, now time.Time, limit int) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.SelectContext(ctx, &docs,
		`SELECT `+documentColumns+` FROM documents
		 WHERE status = 'active' AND retention_until IS NOT NULL AND retention_until <= $1
		 ORDER BY retention_until LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.ListRetentionExpired: %w", err)
	}
	return docs, nil
}

func insertVersion(ctx context.Context, tx *sqlx.Tx, v *domain.DocumentVersion) error {
	_, err := tx.ExecContext(ctx, insertVersionSQL,
		v.ID, v.DocumentID, v.TenantID, v.Version,
		v.StorageKey, v.OriginalName, v.Extension, v.MimeType, v.Size, v.Hash,
		v.ChangedBy, v.ChangeNotes, v.IsLatestVersion, v.CreatedAt)
	return err
}
