package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/domain"
)

func buildChain(t *testing.T, n int) []domain.AuditLogEntry {
	t.Helper()
	tenant := uuid.New()
	base := time.Date(2025, 1, 1, 9, 0, 0, 123456789, time.UTC)
	var prev *domain.AuditLogEntry
	chain := make([]domain.AuditLogEntry, 0, n)
	for i := 0; i < n; i++ {
		e := domain.AuditLogEntry{
			ID:         uuid.New(),
			TenantID:   tenant,
			ActorID:    uuid.New(),
			Action:     domain.AuditDocumentUploaded,
			Outcome:    domain.OutcomeCompleted,
			EntityType: domain.EntityDocument,
			EntityID:   uuid.NewString(),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Severity:   domain.SeverityMedium,
			Context:    domain.AuditContext{"request_id": "r", "operation": "upload"},
		}
		domain.SealAuditEntry(&e, prev)
		chain = append(chain, e)
		prev = &chain[len(chain)-1]
	}
	return chain
}

func verify(chain []domain.AuditLogEntry) domain.ChainVerification {
	v := domain.NewChainVerifier()
	for _, e := range chain {
		if !v.Add(e) {
			break
		}
	}
	return v.Result()
}

func TestSealAuditEntry_LinksChain(t *testing.T) {
	chain := buildChain(t, 3)
	assert.Equal(t, int64(1), chain[0].Sequence)
	assert.Empty(t, chain[0].PrevHash)
	assert.Equal(t, chain[0].Hash, chain[1].PrevHash)
	assert.Equal(t, int64(3), chain[2].Sequence)
	// Timestamps are truncated to the stored precision.
	assert.Zero(t, chain[0].Timestamp.Nanosecond()%1000)
}

func TestComputeAuditHash_NilAndEmptyCollectionsAgree(t *testing.T) {
	e := domain.AuditLogEntry{ID: uuid.New(), Action: "a", Severity: domain.SeverityLow}
	withEmpty := e
	withEmpty.Changes = domain.FieldChanges{}
	withEmpty.Context = domain.AuditContext{}
	assert.Equal(t, domain.ComputeAuditHash(&e), domain.ComputeAuditHash(&withEmpty))
}

func TestChainVerifier_Intact(t *testing.T) {
	chain := buildChain(t, 5)
	res := verify(chain)
	assert.True(t, res.Valid)
	assert.Equal(t, 5, res.EntriesChecked)
	assert.Equal(t, chain[4].Hash, res.HeadHash)
}

func TestChainVerifier_DetectsTampering(t *testing.T) {
	chain := buildChain(t, 4)
	chain[2].Severity = domain.SeverityLow

	res := verify(chain)
	require.False(t, res.Valid)
	assert.Equal(t, int64(3), res.BrokenAt)
	assert.Equal(t, "entry digest mismatch", res.Reason)
}

func TestChainVerifier_DetectsRemovedEntry(t *testing.T) {
	chain := buildChain(t, 4)
	chain = append(chain[:1], chain[2:]...)

	res := verify(chain)
	require.False(t, res.Valid)
	assert.Equal(t, int64(3), res.BrokenAt)
	assert.Equal(t, "sequence gap", res.Reason)
}

func TestChainVerifier_DetectsRelinkedEntry(t *testing.T) {
	chain := buildChain(t, 3)
	chain[1].PrevHash = "forged"
	chain[1].Hash = domain.ComputeAuditHash(&chain[1])

	res := verify(chain)
	require.False(t, res.Valid)
	assert.Equal(t, int64(2), res.BrokenAt)
	assert.Equal(t, "previous hash mismatch", res.Reason)
}

func TestStorableText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"Mozilla\xff", "Mozilla�"},
		{"50%\x00off", "50%off"},
		{"Café", "Café"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.StorableText(tt.in), "%q", tt.in)
	}
}
