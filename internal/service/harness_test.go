package service_test

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/domain"
	"firmdocs/internal/logging"
	"firmdocs/internal/metrics"
	"firmdocs/internal/port"
	"firmdocs/internal/repository/memory"
	"firmdocs/internal/service"
	"firmdocs/mocks"
)

type harness struct {
	docs     port.DocumentRepository
	audit    port.AuditRepository
	tokens   port.IdempotencyStore
	alerter  *mocks.MockAlerter
	metrics  *metrics.Pipeline
	chain    *service.VersionChain
	recorder *service.AuditRecorder
	pipeline service.DocumentPipeline
	tenant   uuid.UUID
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	docs            port.DocumentRepository
	audit           port.AuditRepository
	tokens          port.IdempotencyStore
	duplicateWindow time.Duration
	pageSize        int
}

func withDocumentRepo(r port.DocumentRepository) harnessOption {
	return func(c *harnessConfig) { c.docs = r }
}

func withAuditRepo(r port.AuditRepository) harnessOption {
	return func(c *harnessConfig) { c.audit = r }
}

func withTokens(s port.IdempotencyStore) harnessOption {
	return func(c *harnessConfig) { c.tokens = s }
}

func withDuplicateWindow(d time.Duration) harnessOption {
	return func(c *harnessConfig) { c.duplicateWindow = d }
}

func withPageSize(n int) harnessOption {
	return func(c *harnessConfig) { c.pageSize = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{
		docs:     memory.NewDocumentRepo(),
		audit:    memory.NewAuditRepo(),
		tokens:   memory.NewIdempotencyStore(),
		pageSize: 50,
	}
	for _, o := range opts {
		o(&cfg)
	}

	logger := logging.Discard()
	m, err := metrics.NewPipeline(prometheus.NewRegistry())
	require.NoError(t, err)

	alerter := new(mocks.MockAlerter)
	alerter.On("Send", mock.Anything, mock.Anything).Return(nil).Maybe()

	chain := service.NewVersionChain(cfg.docs, service.VersionChainConfig{
		Policy: service.ContentPolicy{
			MaxSizeBytes: 10 << 20,
			AllowedMimeTypes: []string{
				"application/pdf",
				"image/png",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			},
		},
		DuplicateWindow: cfg.duplicateWindow,
		PageSize:        cfg.pageSize,
	}, logger)
	recorder := service.NewAuditRecorder(cfg.audit, service.AuditRecorderConfig{
		AppendRetries: 3,
		PageSize:      cfg.pageSize,
	}, logger)
	pipeline := service.NewDocumentPipeline(service.NewPermissionEvaluator(), chain, recorder,
		cfg.tokens, alerter, m, service.PipelineConfig{TokenTTL: time.Hour}, logger)

	return &harness{
		docs:     cfg.docs,
		audit:    cfg.audit,
		tokens:   cfg.tokens,
		alerter:  alerter,
		metrics:  m,
		chain:    chain,
		recorder: recorder,
		pipeline: pipeline,
		tenant:   uuid.New(),
	}
}

func (h *harness) actor(role string, perms ...string) *domain.Actor {
	return &domain.Actor{
		ID:          uuid.New(),
		TenantID:    h.tenant,
		Role:        role,
		Permissions: domain.ParsePermissionSet(perms),
		IPAddress:   "10.0.0.7",
		RequestID:   "req-" + role,
	}
}

func (h *harness) staff() *domain.Actor {
	return h.actor("staff", domain.PermDocumentsUpload, domain.PermDocumentsVersion, domain.PermDocumentsRead)
}

func (h *harness) admin() *domain.Actor {
	return h.actor("admin", "*")
}

// entries returns the tenant's audit entries oldest first.
func (h *harness) entries(t *testing.T, tenantID uuid.UUID) []domain.AuditLogEntry {
	t.Helper()
	out, err := h.audit.ListChain(context.Background(), tenantID, 0, 10_000)
	require.NoError(t, err)
	return out
}

func (h *harness) lastEntry(t *testing.T) domain.AuditLogEntry {
	t.Helper()
	all := h.entries(t, h.tenant)
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func pdfRef(hash string) domain.FileRef {
	return domain.FileRef{
		StorageKey:   "tenants/x/documents/" + hash + ".pdf",
		OriginalName: "return.pdf",
		Extension:    "pdf",
		MimeType:     "application/pdf",
		Size:         2048,
		Hash:         hash,
	}
}

func (h *harness) upload(t *testing.T, actor *domain.Actor) *service.VersionResult {
	t.Helper()
	res, err := h.pipeline.Upload(context.Background(), actor, &service.UploadInput{
		Meta: domain.DocumentMeta{Title: "FY24 tax return", Category: "tax", Tags: []string{"fy24"}},
		File: pdfRef("hash-v1"),
	})
	require.NoError(t, err)
	return res
}

func collect[T any](t *testing.T, seq iter.Seq2[T, error]) []T {
	t.Helper()
	var out []T
	for item, err := range seq {
		require.NoError(t, err)
		out = append(out, item)
	}
	return out
}
