package port

import (
	"context"
	"io"
)

// PutInput encapsulates the parameters needed to store one object. The
// bucket is fixed by the backend's configuration.
type PutInput struct {
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
	Metadata    map[string]string
}

// PutOutput contains the result of a successful put.
type PutOutput struct {
	Location string
	ETag     string
}

// ObjectStorage abstracts the S3-compatible store holding document bytes.
type ObjectStorage interface {
	Put(ctx context.Context, input PutInput) (*PutOutput, error)
	Delete(ctx context.Context, key string) error
}
