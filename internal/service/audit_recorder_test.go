package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/domain"
	"firmdocs/internal/logging"
	"firmdocs/internal/repository/memory"
	"firmdocs/internal/service"
	"firmdocs/mocks"
)

func sampleRecord(tenant uuid.UUID) service.AuditRecord {
	return service.AuditRecord{
		TenantID:   tenant,
		ActorID:    uuid.New(),
		Action:     domain.AuditDocumentUploaded,
		Outcome:    domain.OutcomeCompleted,
		EntityType: domain.EntityDocument,
		EntityID:   uuid.NewString(),
		Severity:   domain.SeverityMedium,
		Changes:    []domain.FieldChange{{Field: "current_version", NewValue: "1"}},
		Context:    map[string]string{"request_id": "r1"},
	}
}

func TestAuditRecorder_Record_SealsChain(t *testing.T) {
	rec := service.NewAuditRecorder(memory.NewAuditRepo(), service.AuditRecorderConfig{AppendRetries: 1}, logging.Discard())
	tenant := uuid.New()

	first, err := rec.Record(context.Background(), sampleRecord(tenant))
	require.NoError(t, err)
	second, err := rec.Record(context.Background(), sampleRecord(tenant))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)
	assert.Equal(t, first.Hash, second.PrevHash)
	assert.NotEmpty(t, first.Hash)

	// Other tenants have their own chain.
	other, err := rec.Record(context.Background(), sampleRecord(uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Sequence)
}

func TestAuditRecorder_Record_SealsStorableText(t *testing.T) {
	rec := service.NewAuditRecorder(memory.NewAuditRepo(), service.AuditRecorderConfig{AppendRetries: 1}, logging.Discard())
	in := sampleRecord(uuid.New())
	in.Context = map[string]string{"user_agent": "Mozilla\xff", "filter_q": "a\x00b"}
	in.Changes = []domain.FieldChange{{Field: "title", OldValue: "Caf\xe9", NewValue: "ok"}}

	entry, err := rec.Record(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Mozilla\uFFFD", entry.Context["user_agent"])
	assert.Equal(t, "ab", entry.Context["filter_q"])

	ctxJSON, err := entry.Context.Value()
	require.NoError(t, err)
	changesJSON, err := entry.Changes.Value()
	require.NoError(t, err)

	stored := *entry
	stored.Context, stored.Changes = nil, nil
	require.NoError(t, stored.Context.Scan(ctxJSON))
	require.NoError(t, stored.Changes.Scan(changesJSON))

	v := domain.NewChainVerifier()
	assert.True(t, v.Add(stored))
	assert.True(t, v.Result().Valid)
}

func TestAuditRecorder_Record_RejectsMalformed(t *testing.T) {
	repo := new(mocks.MockAuditRepo)
	rec := service.NewAuditRecorder(repo, service.AuditRecorderConfig{}, logging.Discard())

	bad := sampleRecord(uuid.New())
	bad.Action = ""
	_, err := rec.Record(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	bad = sampleRecord(uuid.New())
	bad.Severity = "urgent"
	_, err = rec.Record(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestAuditRecorder_Record_RetriesThenUnavailable(t *testing.T) {
	repo := new(mocks.MockAuditRepo)
	repo.On("Append", mock.Anything, mock.Anything).Return(errors.New("db down"))
	rec := service.NewAuditRecorder(repo, service.AuditRecorderConfig{
		AppendRetries: 4,
		RetryBackoff:  time.Millisecond,
	}, logging.Discard())

	_, err := rec.Record(context.Background(), sampleRecord(uuid.New()))
	require.ErrorIs(t, err, domain.ErrAuditUnavailable)
	assert.Contains(t, err.Error(), "db down")
	repo.AssertNumberOfCalls(t, "Append", 4)
}

func TestAuditRecorder_Record_SecondAttemptSucceeds(t *testing.T) {
	repo := new(mocks.MockAuditRepo)
	repo.On("Append", mock.Anything, mock.Anything).Return(errors.New("serialization failure")).Once()
	repo.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
	rec := service.NewAuditRecorder(repo, service.AuditRecorderConfig{AppendRetries: 3}, logging.Discard())

	entry, err := rec.Record(context.Background(), sampleRecord(uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, domain.AuditDocumentUploaded, entry.Action)
	repo.AssertExpectations(t)
}

func TestAuditRecorder_Query_PagesLazily(t *testing.T) {
	repo := new(mocks.MockAuditRepo)
	rec := service.NewAuditRecorder(repo, service.AuditRecorderConfig{PageSize: 2}, logging.Discard())
	tenant := uuid.New()
	filter := domain.AuditFilter{TenantID: tenant}
	t0 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	page1 := []domain.AuditLogEntry{
		{Sequence: 3, Timestamp: t0.Add(2 * time.Second)},
		{Sequence: 2, Timestamp: t0.Add(time.Second)},
	}
	page2 := []domain.AuditLogEntry{{Sequence: 1, Timestamp: t0}}
	repo.On("Query", mock.Anything, filter, (*domain.AuditCursor)(nil), 2).Return(page1, nil)
	repo.On("Query", mock.Anything, filter, &domain.AuditCursor{Timestamp: t0.Add(time.Second), Sequence: 2}, 2).Return(page2, nil)

	var seqs []int64
	for e, err := range rec.Query(context.Background(), filter) {
		require.NoError(t, err)
		seqs = append(seqs, e.Sequence)
	}
	assert.Equal(t, []int64{3, 2, 1}, seqs)

	// Stopping after the first entry never fetches the second page.
	repo.Calls = nil
	for range rec.Query(context.Background(), filter) {
		break
	}
	repo.AssertNumberOfCalls(t, "Query", 1)
}

func TestAuditRecorder_Query_PropagatesError(t *testing.T) {
	repo := new(mocks.MockAuditRepo)
	repo.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	rec := service.NewAuditRecorder(repo, service.AuditRecorderConfig{}, logging.Discard())

	var errs int
	for _, err := range rec.Query(context.Background(), domain.AuditFilter{}) {
		assert.Error(t, err)
		errs++
	}
	assert.Equal(t, 1, errs)
}

func TestAuditRecorder_VerifyChain_AcrossPages(t *testing.T) {
	repo := memory.NewAuditRepo()
	rec := service.NewAuditRecorder(repo, service.AuditRecorderConfig{PageSize: 2}, logging.Discard())
	tenant := uuid.New()
	for i := 0; i < 5; i++ {
		_, err := rec.Record(context.Background(), sampleRecord(tenant))
		require.NoError(t, err)
	}

	result, err := rec.VerifyChain(context.Background(), tenant)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 5, result.EntriesChecked)

	empty, err := rec.VerifyChain(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, empty.Valid)
	assert.Zero(t, empty.EntriesChecked)
}
