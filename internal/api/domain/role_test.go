package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tallyworks/tally/internal/api/domain"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{
		"platform_admin", "owner", "business_admin", "accountant", "team_member", "client",
	} {
		r, err := domain.ParseRole(valid)
		require.NoError(t, err)
		require.Equal(t, valid, r.String())
	}

	_, err := domain.ParseRole("superuser")
	require.ErrorIs(t, err, domain.ErrUnknownRole)
}

func TestRoleInvitable(t *testing.T) {
	t.Parallel()

	require.True(t, domain.RoleAccountant.Invitable())
	require.True(t, domain.RoleTeamMember.Invitable())
	require.False(t, domain.RolePlatformAdmin.Invitable())
	require.False(t, domain.RoleClient.Invitable())
}
