package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/pkg/cryptox"
	"github.com/tallyworks/tally/pkg/idx"
)

func TestInviteClaimRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, business := env.seedOwner(t, "roundtrip-owner@example.com")

	perms := domain.NewPermissionSet("Invoices:Read", "invoices.write")
	invitation, token, err := env.Team.InviteMember(ctx, business.ID, owner.ID, owner.Role,
		"Member@Example.com", "New Member", domain.RoleAccountant, perms)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "member@example.com", invitation.Email)
	assert.Equal(t, domain.InvitationPending, invitation.Status)

	// Only the fingerprint is stored, never the raw token.
	assert.NotEqual(t, token, invitation.TokenHash)
	assert.Equal(t, cryptox.FingerprintToken(token), invitation.TokenHash)

	// The membership is tracked as invited until the claim.
	member, err := env.Store.Members().Get(ctx, business.ID, "member@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberInvited, member.Status)
	assert.Nil(t, member.JoinedAt)

	result, err := env.Team.ClaimInvite(ctx, token, "", "Claim1pass")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "New Member", result.Account.Name)
	assert.Equal(t, domain.RoleAccountant, result.Account.Role)
	assert.Equal(t, business.ID, result.Account.BusinessID)
	assert.True(t, result.Account.Permissions.HasAll("invoices.read", "invoices.write"))

	member, err = env.Store.Members().Get(ctx, business.ID, "member@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberActive, member.Status)
	assert.NotNil(t, member.JoinedAt)

	// The claimed member can log in with the chosen password.
	login, err := env.Auth.Login(ctx, "member@example.com", "Claim1pass", "")
	require.NoError(t, err)
	assert.Equal(t, result.Account.ID, login.Account.ID)
}

func TestClaimIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, business := env.seedOwner(t, "singleuse-owner@example.com")

	_, token, err := env.Team.InviteMember(ctx, business.ID, owner.ID, owner.Role,
		"once@example.com", "Once", domain.RoleTeamMember, domain.NewPermissionSet())
	require.NoError(t, err)

	_, err = env.Team.ClaimInvite(ctx, token, "Once", "Claim1pass")
	require.NoError(t, err)

	_, err = env.Team.ClaimInvite(ctx, token, "Once", "Claim1pass")
	assert.ErrorIs(t, err, ErrInviteUsed)
}

func TestClaimUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Team.ClaimInvite(context.Background(), "no-such-token", "X", "Claim1pass")
	assert.ErrorIs(t, err, ErrInviteInvalid)
}

func TestClaimExpiryBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, business := env.seedOwner(t, "expiry-owner@example.com")

	// An invitation whose expiry is now (or earlier) is no longer claimable:
	// the boundary is closed.
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.NoError(t, env.Store.Invitations().Create(ctx, domain.Invitation{
		ID:          idx.New().String(),
		BusinessID:  business.ID,
		Email:       "late@example.com",
		Role:        domain.RoleTeamMember,
		Permissions: domain.NewPermissionSet(),
		TokenHash:   cryptox.FingerprintToken(token),
		Status:      domain.InvitationPending,
		ExpiresAt:   time.Now().UTC().Add(-time.Millisecond),
	}))

	_, err = env.Team.ClaimInvite(ctx, token, "Late", "Claim1pass")
	assert.ErrorIs(t, err, ErrInviteExpired)
}

func TestReinviteRevokesPriorPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, business := env.seedOwner(t, "reinvite-owner@example.com")

	_, firstToken, err := env.Team.InviteMember(ctx, business.ID, owner.ID, owner.Role,
		"again@example.com", "Again", domain.RoleTeamMember, domain.NewPermissionSet())
	require.NoError(t, err)

	_, secondToken, err := env.Team.InviteMember(ctx, business.ID, owner.ID, owner.Role,
		"again@example.com", "Again", domain.RoleAccountant, domain.NewPermissionSet())
	require.NoError(t, err)

	// Only the newest token is claimable.
	_, err = env.Team.ClaimInvite(ctx, firstToken, "Again", "Claim1pass")
	assert.ErrorIs(t, err, ErrInviteUsed)

	result, err := env.Team.ClaimInvite(ctx, secondToken, "Again", "Claim1pass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAccountant, result.Account.Role)
}

func TestClaimConflictsWithOtherBusiness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ownerA, businessA := env.seedOwner(t, "owner-a@example.com")

	// The invitee already belongs to another business.
	otherBusinessID := idx.New().String()
	hash, err := cryptox.HashPassword("Existing1pass")
	require.NoError(t, err)
	require.NoError(t, env.Store.Accounts().Create(ctx, domain.Account{
		ID:           idx.New().String(),
		Email:        "taken@example.com",
		Name:         "Taken",
		Role:         domain.RoleTeamMember,
		PasswordHash: hash,
		BusinessID:   otherBusinessID,
		Permissions:  domain.NewPermissionSet(),
	}))

	_, token, err := env.Team.InviteMember(ctx, businessA.ID, ownerA.ID, ownerA.Role,
		"taken@example.com", "Taken", domain.RoleTeamMember, domain.NewPermissionSet())
	require.NoError(t, err)

	_, err = env.Team.ClaimInvite(ctx, token, "Taken", "Claim1pass")
	assert.ErrorIs(t, err, ErrAccountBusinessConflict)

	// The invitation stays pending; the failed claim consumed nothing.
	inv, err := env.Store.Invitations().GetByTokenHash(ctx, cryptox.FingerprintToken(token))
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationPending, inv.Status)
}

func TestInviteRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, business := env.seedOwner(t, "realowner@example.com")
	stranger, _ := env.seedOwner(t, "stranger@example.com")

	_, _, err := env.Team.InviteMember(ctx, business.ID, stranger.ID, stranger.Role,
		"x@example.com", "X", domain.RoleTeamMember, domain.NewPermissionSet())
	assert.ErrorIs(t, err, ErrNotBusinessOwner)
}

func TestInviteRejectsNonInvitableRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, business := env.seedOwner(t, "roles-owner@example.com")

	for _, role := range []domain.Role{domain.RolePlatformAdmin, domain.RoleClient} {
		_, _, err := env.Team.InviteMember(ctx, business.ID, owner.ID, owner.Role,
			"r@example.com", "R", role, domain.NewPermissionSet())
		assert.ErrorIs(t, err, ErrNotInvitableRole, "role %s", role)
	}
}

func TestRemoveMemberProtectsOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, business := env.seedOwner(t, "protected-owner@example.com")

	ownerMember, err := env.Store.Members().Upsert(ctx, domain.Member{
		ID:          idx.New().String(),
		BusinessID:  business.ID,
		Email:       owner.Email,
		Name:        owner.Name,
		Role:        domain.RoleOwner,
		Status:      domain.MemberActive,
		Permissions: domain.NewPermissionSet(),
	})
	require.NoError(t, err)

	err = env.Team.RemoveMember(ctx, business.ID, owner.ID, owner.Role, ownerMember.ID)
	assert.ErrorIs(t, err, ErrOwnerMembership)

	// Other members come and go freely.
	other, err := env.Team.AddMember(ctx, business.ID, owner.ID, owner.Role,
		"leaver@example.com", "Leaver", domain.RoleTeamMember, domain.NewPermissionSet())
	require.NoError(t, err)
	require.NoError(t, env.Team.RemoveMember(ctx, business.ID, owner.ID, owner.Role, other.ID))
}

func TestAddMemberSameConflictRuleAsClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, business := env.seedOwner(t, "direct-owner@example.com")

	hash, err := cryptox.HashPassword("Existing1pass")
	require.NoError(t, err)
	require.NoError(t, env.Store.Accounts().Create(ctx, domain.Account{
		ID:           idx.New().String(),
		Email:        "elsewhere@example.com",
		Role:         domain.RoleTeamMember,
		PasswordHash: hash,
		BusinessID:   idx.New().String(),
		Permissions:  domain.NewPermissionSet(),
	}))

	_, err = env.Team.AddMember(ctx, business.ID, owner.ID, owner.Role,
		"elsewhere@example.com", "Elsewhere", domain.RoleTeamMember, domain.NewPermissionSet())
	assert.ErrorIs(t, err, ErrAccountBusinessConflict)
}

func TestUpdateMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, business := env.seedOwner(t, "update-owner@example.com")

	member, err := env.Team.AddMember(ctx, business.ID, owner.ID, owner.Role,
		"promote@example.com", "Promote", domain.RoleTeamMember, domain.NewPermissionSet("invoices.read"))
	require.NoError(t, err)

	updated, err := env.Team.UpdateMember(ctx, business.ID, owner.ID, owner.Role, member.ID,
		domain.RoleBusinessAdmin, domain.MemberActive, domain.NewPermissionSet("*"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBusinessAdmin, updated.Role)
	assert.True(t, updated.Permissions.HasWildcard())
}
