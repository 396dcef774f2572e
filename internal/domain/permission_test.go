package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/domain"
)

func TestParsePermission(t *testing.T) {
	assert.Equal(t, domain.All{}, domain.ParsePermission("*"))
	assert.Equal(t, domain.All{}, domain.ParsePermission("  *  "))
	assert.Equal(t, domain.Specific("documents:read"), domain.ParsePermission("documents:read"))
	// Only the bare wildcard is special.
	assert.Equal(t, domain.Specific("documents:*"), domain.ParsePermission("documents:*"))
}

func TestParsePermissionSet_SkipsBlanks(t *testing.T) {
	set := domain.ParsePermissionSet([]string{"documents:read", "", "  ", "*"})
	require.Len(t, set, 2)
	assert.Equal(t, []string{"documents:read", "*"}, set.Strings())
}

func TestSystemActor_HoldsAll(t *testing.T) {
	actor := domain.SystemActor(domain.SystemActorID)
	require.Len(t, actor.Permissions, 1)
	assert.IsType(t, domain.All{}, actor.Permissions[0])
	assert.Equal(t, domain.SystemActorID, actor.ID)
}
