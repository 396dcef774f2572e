package domain

// FileType represents the allowed file types for upload.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeJPG  FileType = "jpg"
	FileTypePNG  FileType = "png"
	FileTypeDOCX FileType = "docx"
	FileTypeXLSX FileType = "xlsx"
	FileTypeCSV  FileType = "csv"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF:  "application/pdf",
	FileTypeJPG:  "image/jpeg",
	FileTypePNG:  "image/png",
	FileTypeDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FileTypeXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FileTypeCSV:  "text/csv",
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
	"docx": FileTypeDOCX,
	"xlsx": FileTypeXLSX,
	"csv":  FileTypeCSV,
}

// SniffedContentTypes lists, per FileType, the results of content sniffing
// that are consistent with the declared type. Office formats sniff as zip
// archives and CSV sniffs as plain text.
var SniffedContentTypes = map[FileType][]string{
	FileTypePDF:  {"application/pdf"},
	FileTypeJPG:  {"image/jpeg"},
	FileTypePNG:  {"image/png"},
	FileTypeDOCX: {"application/zip"},
	FileTypeXLSX: {"application/zip"},
	FileTypeCSV:  {"text/plain; charset=utf-8", "text/csv"},
}

// DocumentStatus is a state flag on a Document. Documents are never removed;
// archival only flips this flag.
type DocumentStatus string

const (
	DocumentStatusActive   DocumentStatus = "active"
	DocumentStatusArchived DocumentStatus = "archived"
)

// Severity classifies an audit entry for compliance review.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ValidSeverities is the set accepted by audit filters.
var ValidSeverities = map[Severity]bool{
	SeverityLow:      true,
	SeverityMedium:   true,
	SeverityHigh:     true,
	SeverityCritical: true,
}

// SeverityRank orders severities from low (0) to critical (3). Unknown values rank -1.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if SeverityRank(b) > SeverityRank(a) {
		return b
	}
	return a
}

// EntityType names the kind of entity an audit entry refers to.
type EntityType string

const (
	EntityDocument        EntityType = "document"
	EntityDocumentVersion EntityType = "document_version"
	EntityAuditLog        EntityType = "audit_log"
)

// AuditOutcome is the terminal state of a pipeline invocation.
type AuditOutcome string

const (
	OutcomeCompleted AuditOutcome = "completed"
	OutcomeDenied    AuditOutcome = "denied"
	OutcomeFailed    AuditOutcome = "failed"
)

// Operation identifies one of the gated pipeline operations.
type Operation string

const (
	OpUpload         Operation = "upload"
	OpCreateVersion  Operation = "create_version"
	OpRestoreVersion Operation = "restore_version"
	OpListVersions   Operation = "list_versions"
	OpArchive        Operation = "archive"
	OpQueryAudit     Operation = "query_audit_log"
	OpVerifyAudit    Operation = "verify_audit_chain"
)

// AuditAction values recorded for completed operations.
const (
	AuditDocumentUploaded       = "document_uploaded"
	AuditDocumentVersionCreated = "document_version_created"
	AuditDocumentVersionRestore = "document_version_restored"
	AuditDocumentVersionsListed = "document_versions_listed"
	AuditDocumentArchived       = "document_archived"
	AuditLogQueried             = "audit_log_queried"
	AuditChainVerified          = "audit_chain_verified"
)

// PipelineState enumerates the states a single pipeline invocation moves through.
type PipelineState string

const (
	StateRequested   PipelineState = "requested"
	StateAuthorizing PipelineState = "authorizing"
	StateDenied      PipelineState = "denied"
	StateAuthorized  PipelineState = "authorized"
	StateExecuting   PipelineState = "executing"
	StateCompleted   PipelineState = "completed"
	StateFailed      PipelineState = "failed"
	StateRecorded    PipelineState = "recorded"
)
