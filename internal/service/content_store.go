package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

// ContentInput is the DTO for storing uploaded bytes.
type ContentInput struct {
	TenantID uuid.UUID
	Filename string
	Size     int64
	Body     io.Reader
}

// ContentStore accepts file bytes and returns the opaque FileRef the
// version chain works with.
type ContentStore interface {
	Store(ctx context.Context, input ContentInput) (*domain.FileRef, error)
	// Discard removes bytes that no version ended up referencing.
	Discard(ctx context.Context, ref *domain.FileRef) error
}

type contentStore struct {
	storage  port.ObjectStorage
	maxBytes int64
	logger   *slog.Logger
}

// NewContentStore creates a ContentStore writing to storage.
func NewContentStore(storage port.ObjectStorage, maxBytes int64, logger *slog.Logger) ContentStore {
	return &contentStore{storage: storage, maxBytes: maxBytes, logger: logger}
}

func (s *contentStore) Store(ctx context.Context, input ContentInput) (*domain.FileRef, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(input.Filename), "."))
	fileType, ok := domain.AllowedExtensions[ext]
	if !ok {
		return nil, &domain.FileRejectedError{Reason: fmt.Sprintf("unsupported file extension %q", ext)}
	}
	if s.maxBytes > 0 && input.Size > s.maxBytes {
		return nil, &domain.FileRejectedError{Reason: fmt.Sprintf("size %d exceeds limit of %d bytes", input.Size, s.maxBytes)}
	}

	// Magic-byte check on the first 512 bytes.
	head := make([]byte, 512)
	n, err := io.ReadFull(input.Body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("contentStore.Store: reading file header: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, &domain.FileRejectedError{Reason: "file is empty"}
	}
	detected := http.DetectContentType(head)
	if !slices.Contains(domain.SniffedContentTypes[fileType], detected) {
		return nil, &domain.FileRejectedError{Reason: fmt.Sprintf("content (%s) does not match .%s", detected, ext)}
	}

	mimeType := domain.AllowedFileTypes[fileType]
	key := fmt.Sprintf("tenants/%s/documents/%s.%s", input.TenantID, uuid.New(), ext)
	hasher := blake3.New()
	counter := &countingReader{r: io.TeeReader(io.MultiReader(bytes.NewReader(head), input.Body), hasher)}

	s.logger.Info("contentStore.Store: storing file",
		"tenant_id", input.TenantID, "name", input.Filename, "mime_type", mimeType, "size", input.Size)

	if _, err := s.storage.Put(ctx, port.PutInput{
		Key:         key,
		Body:        counter,
		ContentType: mimeType,
		Size:        input.Size,
		Metadata:    map[string]string{"original-name": input.Filename},
	}); err != nil {
		s.logger.Error("contentStore.Store: storage put failed", "key", key, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	size := input.Size
	if counter.n > 0 {
		size = counter.n
	}
	return &domain.FileRef{
		StorageKey:   key,
		OriginalName: input.Filename,
		Extension:    ext,
		MimeType:     mimeType,
		Size:         size,
		Hash:         hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (s *contentStore) Discard(ctx context.Context, ref *domain.FileRef) error {
	if ref == nil || ref.StorageKey == "" {
		return nil
	}
	if err := s.storage.Delete(ctx, ref.StorageKey); err != nil {
		s.logger.Warn("contentStore.Discard: delete failed", "key", ref.StorageKey, "error", err)
		return fmt.Errorf("contentStore.Discard: %w", err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
