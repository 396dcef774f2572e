package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Permission strings required by each pipeline operation. They are fixed and
// not configurable.
const (
	PermDocumentsUpload  = "documents:upload"
	PermDocumentsVersion = "documents:version"
	PermDocumentsRestore = "documents:restore"
	PermDocumentsRead    = "documents:read"
	PermDocumentsArchive = "documents:archive"
	PermAuditRead        = "audit:read"
)

// WildcardPermission is the textual form of All used in policy files and tokens.
const WildcardPermission = "*"

// Permission is a closed sum type: either Specific(name) or All.
type Permission interface {
	isPermission()
	String() string
}

// Specific grants exactly one named permission.
type Specific string

func (Specific) isPermission()    {}
func (p Specific) String() string { return string(p) }

// All grants every permission.
type All struct{}

func (All) isPermission()  {}
func (All) String() string { return WildcardPermission }

// ParsePermission converts the textual form into a Permission. The wildcard
// is recognised only here, at the boundary.
func ParsePermission(s string) Permission {
	s = strings.TrimSpace(s)
	if s == WildcardPermission {
		return All{}
	}
	return Specific(s)
}

// PermissionSet is an actor's resolved permissions.
type PermissionSet []Permission

// ParsePermissionSet parses every entry, skipping blanks.
func ParsePermissionSet(raw []string) PermissionSet {
	set := make(PermissionSet, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		set = append(set, ParsePermission(r))
	}
	return set
}

// Strings renders the set back to its textual form.
func (s PermissionSet) Strings() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.String()
	}
	return out
}

// SystemActorID identifies actions taken by scheduled sweeps rather than a person.
var SystemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Actor is the caller of a pipeline operation with its role already resolved
// to a permission set.
type Actor struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Role        string
	Permissions PermissionSet
	IPAddress   string
	UserAgent   string
	RequestID   string
}

// SystemActor returns the actor used by background sweeps for a tenant.
func SystemActor(tenantID uuid.UUID) *Actor {
	return &Actor{
		ID:          SystemActorID,
		TenantID:    tenantID,
		Role:        "system",
		Permissions: PermissionSet{All{}},
	}
}
