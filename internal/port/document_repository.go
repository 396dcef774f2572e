package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"firmdocs/internal/domain"
)

// VersionBuilder is called inside a document's critical section with the
// locked document and its current latest version. It returns the version to
// append, or (nil, nil) when the latest version already satisfies the
// request and nothing should be written.
type VersionBuilder func(doc *domain.Document, latest *domain.DocumentVersion) (*domain.DocumentVersion, error)

// AppendResult describes the outcome of DocumentRepository.AppendVersion.
type AppendResult struct {
	Document  *domain.Document
	Previous  *domain.DocumentVersion
	Version   *domain.DocumentVersion
	Duplicate bool
}

// DocumentRepository defines the contract for document and version-chain persistence.
// All query methods include tenantID for tenant isolation.
//
// AppendVersion must serialize with every other AppendVersion on the same
// document: reading the latest version, clearing its flag and inserting the
// successor happen as one unit. Versions are never updated or deleted.
type DocumentRepository interface {
	CreateWithInitialVersion(ctx context.Context, doc *domain.Document, version *domain.DocumentVersion) error
	GetByID(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error)
	AppendVersion(ctx context.Context, tenantID, docID uuid.UUID, build VersionBuilder) (*AppendResult, error)
	GetVersion(ctx context.Context, tenantID, docID uuid.UUID, version int) (*domain.DocumentVersion, error)
	// ListVersions returns up to limit versions below the given version
	// number in descending order. before <= 0 starts at the newest version.
	ListVersions(ctx context.Context, tenantID, docID uuid.UUID, before, limit int) ([]domain.DocumentVersion, error)
	// LatestVersions returns every version flagged latest; callers treat any
	// count other than one as an invariant violation.
	LatestVersions(ctx context.Context, tenantID, docID uuid.UUID) ([]domain.DocumentVersion, error)
	UpdateStatus(ctx context.Context, tenantID, docID uuid.UUID, status domain.DocumentStatus) (previous domain.DocumentStatus, err error)
	ListRetentionExpired(ctx context.Context, now time.Time, limit int) ([]domain.Document, error)
}
