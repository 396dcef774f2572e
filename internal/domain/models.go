package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document is the logical, tenant-scoped identity of a file lineage. Its
// descriptive metadata is copied forward across versions and is not itself
// versioned content.
type Document struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	TenantID       uuid.UUID      `db:"tenant_id" json:"firm_id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	Category       string         `db:"category" json:"category"`
	Tags           StringList     `db:"tags" json:"tags"`
	ClientID       *uuid.UUID     `db:"client_id" json:"client_id,omitempty"`
	ProjectID      *uuid.UUID     `db:"project_id" json:"project_id,omitempty"`
	ComplianceID   *uuid.UUID     `db:"compliance_id" json:"compliance_id,omitempty"`
	DocumentType   string         `db:"document_type" json:"document_type"`
	MimeType       string         `db:"mime_type" json:"mime_type"`
	RetentionUntil *time.Time     `db:"retention_until" json:"retention_until,omitempty"`
	Status         DocumentStatus `db:"status" json:"status"`
	CurrentVersion int            `db:"current_version" json:"current_version"`
	CreatedBy      uuid.UUID      `db:"created_by" json:"created_by"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// DocumentMeta is the caller-supplied descriptive metadata for a new document.
type DocumentMeta struct {
	TenantID       uuid.UUID  `json:"firm_id" validate:"required"`
	Title          string     `json:"title" validate:"required,max=255"`
	Description    string     `json:"description" validate:"max=2000"`
	Category       string     `json:"category" validate:"max=100"`
	Tags           []string   `json:"tags" validate:"max=50,dive,required,max=64"`
	ClientID       *uuid.UUID `json:"client_id"`
	ProjectID      *uuid.UUID `json:"project_id"`
	ComplianceID   *uuid.UUID `json:"compliance_id"`
	DocumentType   string     `json:"document_type" validate:"max=100"`
	RetentionUntil *time.Time `json:"retention_until"`
}

// FileRef is an opaque pointer to stored bytes plus the attributes the core
// is allowed to inspect.
type FileRef struct {
	StorageKey   string `db:"file_key" json:"storage_key" validate:"required"`
	OriginalName string `db:"original_name" json:"original_name"`
	Extension    string `db:"extension" json:"extension"`
	MimeType     string `db:"mime_type" json:"mime_type" validate:"required"`
	Size         int64  `db:"file_size" json:"size" validate:"gt=0"`
	Hash         string `db:"content_hash" json:"content_hash" validate:"required"`
}

// DocumentVersion is one immutable snapshot in a document's chain.
type DocumentVersion struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DocumentID uuid.UUID `db:"document_id" json:"document_id"`
	TenantID   uuid.UUID `db:"tenant_id" json:"firm_id"`
	Version    int       `db:"version" json:"version"`
	FileRef
	ChangedBy       uuid.UUID `db:"changed_by" json:"changed_by"`
	ChangeNotes     string    `db:"change_notes" json:"change_notes"`
	IsLatestVersion bool      `db:"is_latest_version" json:"is_latest_version"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// FieldChange records one modified field in an audit entry.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// AuditLogEntry is an immutable record of one attempted action.
type AuditLogEntry struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	TenantID           uuid.UUID    `db:"tenant_id" json:"firm_id"`
	Sequence           int64        `db:"sequence" json:"sequence"`
	ActorID            uuid.UUID    `db:"actor_id" json:"actor_id"`
	Action             string       `db:"action" json:"action"`
	Outcome            AuditOutcome `db:"outcome" json:"outcome"`
	EntityType         EntityType   `db:"entity_type" json:"entity_type"`
	EntityID           string       `db:"entity_id" json:"entity_id"`
	Timestamp          time.Time    `db:"timestamp" json:"timestamp"`
	Severity           Severity     `db:"severity" json:"severity"`
	IsComplianceAction bool         `db:"is_compliance_action" json:"is_compliance_action"`
	Changes            FieldChanges `db:"changes" json:"changes,omitempty"`
	IPAddress          string       `db:"ip_address" json:"ip_address,omitempty"`
	Context            AuditContext `db:"context" json:"context,omitempty"`
	ErrorKind          string       `db:"error_kind" json:"error_kind,omitempty"`
	PrevHash           string       `db:"prev_hash" json:"prev_hash"`
	Hash               string       `db:"hash" json:"hash"`
}

// AuditFilter narrows an audit query. TenantID is mandatory; zero values of
// the other fields mean "no constraint".
type AuditFilter struct {
	TenantID     uuid.UUID
	ActorID      *uuid.UUID
	EntityType   EntityType
	Severity     Severity
	IsCompliance *bool
	Search       string
	From         *time.Time
	To           *time.Time
}

// AuditCursor marks the last entry returned by a page of an audit query.
// Entries are ordered by (timestamp DESC, sequence DESC).
type AuditCursor struct {
	Timestamp time.Time
	Sequence  int64
}

// StringList is a []string persisted as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// FieldChanges is the ordered change list persisted as a JSON array.
type FieldChanges []FieldChange

func (c FieldChanges) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]FieldChange(c))
}

func (c *FieldChanges) Scan(src any) error {
	return scanJSON(src, c)
}

// AuditContext is free-form request metadata persisted as a JSON object.
type AuditContext map[string]string

func (c AuditContext) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(c))
}

func (c *AuditContext) Scan(src any) error {
	return scanJSON(src, c)
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
