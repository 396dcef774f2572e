package domain

import (
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// auditDomainKey separates audit-chain digests from every other blake3 use.
var auditDomainKey = [32]byte{
	'f', 'i', 'r', 'm', 'd', 'o', 'c', 's', '.', 'a', 'u', 'd', 'i', 't', '.',
	'c', 'h', 'a', 'i', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// AuditTimestamp normalises a time to the precision the audit store keeps,
// so a digest computed before insert matches one computed after reading back.
func AuditTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// StorableText returns s as the audit store will hand it back: invalid UTF-8
// becomes U+FFFD and NUL bytes are dropped. Entries must be sealed over
// storable text or they fail verification after a round trip.
func StorableText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if strings.IndexByte(s, 0) >= 0 {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	return s
}

// ComputeAuditHash returns the hex digest of entry chained onto entry.PrevHash.
// The stored Hash field itself is excluded.
func ComputeAuditHash(entry *AuditLogEntry) string {
	h, err := blake3.NewKeyed(auditDomainKey[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic(err)
	}
	writeField(h, entry.PrevHash)
	writeInt(h, entry.Sequence)
	writeField(h, entry.ID.String())
	writeField(h, entry.TenantID.String())
	writeField(h, entry.ActorID.String())
	writeField(h, entry.Action)
	writeField(h, string(entry.Outcome))
	writeField(h, string(entry.EntityType))
	writeField(h, entry.EntityID)
	writeInt(h, AuditTimestamp(entry.Timestamp).UnixMicro())
	writeField(h, string(entry.Severity))
	if entry.IsComplianceAction {
		writeField(h, "1")
	} else {
		writeField(h, "0")
	}
	writeInt(h, int64(len(entry.Changes)))
	for _, c := range entry.Changes {
		writeField(h, c.Field)
		writeField(h, c.OldValue)
		writeField(h, c.NewValue)
	}
	writeField(h, entry.IPAddress)
	keys := make([]string, 0, len(entry.Context))
	for k := range entry.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeInt(h, int64(len(keys)))
	for _, k := range keys {
		writeField(h, k)
		writeField(h, entry.Context[k])
	}
	writeField(h, entry.ErrorKind)
	return hex.EncodeToString(h.Sum(nil))
}

// SealAuditEntry assigns the chain position and digest to entry. prev is the
// tenant's current chain head, or nil for the first entry.
func SealAuditEntry(entry *AuditLogEntry, prev *AuditLogEntry) {
	if prev == nil {
		entry.Sequence = 1
		entry.PrevHash = ""
	} else {
		entry.Sequence = prev.Sequence + 1
		entry.PrevHash = prev.Hash
	}
	entry.Timestamp = AuditTimestamp(entry.Timestamp)
	entry.Hash = ComputeAuditHash(entry)
}

// ChainVerification reports the outcome of walking a tenant's audit chain.
type ChainVerification struct {
	Valid          bool   `json:"valid"`
	EntriesChecked int    `json:"entries_checked"`
	BrokenAt       int64  `json:"broken_at,omitempty"`
	Reason         string `json:"reason,omitempty"`
	HeadHash       string `json:"head_hash,omitempty"`
}

// ChainVerifier checks entries in ascending sequence order, one at a time.
type ChainVerifier struct {
	prev   *AuditLogEntry
	result ChainVerification
}

// NewChainVerifier starts a verification at the head of the chain.
func NewChainVerifier() *ChainVerifier {
	return &ChainVerifier{result: ChainVerification{Valid: true}}
}

// Add checks the next entry and reports whether verification may continue.
func (v *ChainVerifier) Add(entry AuditLogEntry) bool {
	if !v.result.Valid {
		return false
	}
	v.result.EntriesChecked++
	wantSeq := int64(1)
	wantPrev := ""
	if v.prev != nil {
		wantSeq = v.prev.Sequence + 1
		wantPrev = v.prev.Hash
	}
	switch {
	case entry.Sequence != wantSeq:
		v.fail(entry.Sequence, "sequence gap")
	case entry.PrevHash != wantPrev:
		v.fail(entry.Sequence, "previous hash mismatch")
	case ComputeAuditHash(&entry) != entry.Hash:
		v.fail(entry.Sequence, "entry digest mismatch")
	}
	if !v.result.Valid {
		return false
	}
	e := entry
	v.prev = &e
	v.result.HeadHash = entry.Hash
	return true
}

// Result returns the verification outcome so far.
func (v *ChainVerifier) Result() ChainVerification {
	return v.result
}

func (v *ChainVerifier) fail(seq int64, reason string) {
	v.result.Valid = false
	v.result.BrokenAt = seq
	v.result.Reason = reason
}

type hashWriter interface {
	Write(p []byte) (int, error)
}

func writeField(h hashWriter, s string) {
	writeInt(h, int64(len(s)))
	_, _ = h.Write([]byte(s))
}

func writeInt(h hashWriter, n int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	_, _ = h.Write(buf[:])
}
