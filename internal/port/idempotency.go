package port

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord is the stored result of a completed mutation.
type IdempotencyRecord struct {
	DocumentID uuid.UUID `json:"document_id"`
	Version    int       `json:"version"`
	// Fingerprint identifies the request the token was first used for.
	Fingerprint string    `json:"fingerprint"`
	StoredAt    time.Time `json:"stored_at"`
}

// IdempotencyStore remembers completed mutations by client-supplied token.
type IdempotencyStore interface {
	// Get returns domain.ErrNotFound when no record exists for key.
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	// Put stores rec under key unless a record already exists; the first
	// writer wins.
	Put(ctx context.Context, key string, rec IdempotencyRecord, ttl time.Duration) error
}
