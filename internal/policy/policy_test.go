package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/domain"
	"firmdocs/internal/logging"
	"firmdocs/internal/policy"
)

func resolve(t *testing.T, r *policy.Resolver, role string) []string {
	t.Helper()
	set, err := r.Resolve(context.Background(), uuid.New(), uuid.New(), role)
	require.NoError(t, err)
	return set.Strings()
}

func TestLoad_BuiltInRoles(t *testing.T) {
	r, err := policy.Load("", logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{"admin", "auditor", "client", "manager", "partner", "staff"}, r.Roles())
	assert.Equal(t, []string{"*"}, resolve(t, r, "admin"))
	assert.ElementsMatch(t, []string{
		domain.PermDocumentsUpload, domain.PermDocumentsVersion, domain.PermDocumentsRead,
		domain.PermDocumentsRestore, domain.PermDocumentsArchive, domain.PermAuditRead,
	}, resolve(t, r, "partner"))
	assert.ElementsMatch(t, []string{domain.PermDocumentsRead}, resolve(t, r, " Client "))
	assert.Empty(t, resolve(t, r, "intern"))
}

func TestLoad_OverlayReplacesRoles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
roles:
  client:
    permissions: []
  reviewer:
    inherits: [auditor]
    permissions: [documents:restore]
`), 0o600))

	r, err := policy.Load(path, logging.Discard())
	require.NoError(t, err)
	assert.Empty(t, resolve(t, r, "client"))
	assert.ElementsMatch(t, []string{domain.PermDocumentsRead, domain.PermAuditRead, domain.PermDocumentsRestore}, resolve(t, r, "reviewer"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := policy.Load(filepath.Join(t.TempDir(), "missing.yaml"), logging.Discard())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  x:\n    permisions: [a]\n"), 0o600))
	_, err = policy.Load(path, logging.Discard())
	assert.ErrorContains(t, err, "parsing role policy")
}

func TestNew_InheritanceErrors(t *testing.T) {
	_, err := policy.New(&policy.Config{Roles: map[string]policy.RoleDefinition{
		"a": {Inherits: []string{"b"}},
		"b": {Inherits: []string{"a"}},
	}})
	assert.ErrorContains(t, err, "inherits from itself")

	_, err = policy.New(&policy.Config{Roles: map[string]policy.RoleDefinition{
		"a": {Inherits: []string{"ghost"}},
	}})
	assert.ErrorContains(t, err, `"ghost" is not defined`)
}

func TestResolve_ReturnsCopy(t *testing.T) {
	r, err := policy.Load("", logging.Discard())
	require.NoError(t, err)

	set, err := r.Resolve(context.Background(), uuid.Nil, uuid.Nil, "staff")
	require.NoError(t, err)
	set[0] = domain.All{}

	assert.NotContains(t, resolve(t, r, "staff"), "*")
}
