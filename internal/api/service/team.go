package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/mail"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/cryptox"
	"github.com/tallyworks/tally/pkg/idx"
	"github.com/tallyworks/tally/pkg/slogx"
)

var (
	ErrNotBusinessOwner        = errors.New("only the business owner can manage the team")
	ErrNotInvitableRole        = errors.New("role cannot be invited")
	ErrInviteInvalid           = errors.New("invalid invitation token")
	ErrInviteUsed              = errors.New("invitation already used")
	ErrInviteExpired           = errors.New("invitation expired")
	ErrAccountBusinessConflict = errors.New("account belongs to another business")
	ErrOwnerMembership         = errors.New("cannot remove the owner's membership")
)

type TeamService struct {
	Store           store.Store
	Sessions        *SessionIssuer
	Mailer          mail.Mailer
	FrontendBaseURL string
}

// requireOwner checks the requester owns the business. Platform admins pass.
func (s *TeamService) requireOwner(ctx context.Context, businessID, requesterID string, requesterRole domain.Role) (domain.Business, error) {
	business, err := s.Store.Businesses().GetByID(ctx, businessID)
	if err != nil {
		return domain.Business{}, err
	}
	if requesterRole == domain.RolePlatformAdmin {
		return business, nil
	}
	if business.OwnerAccountID != requesterID {
		return domain.Business{}, ErrNotBusinessOwner
	}
	return business, nil
}

// InviteMember issues a tokenized invitation for (business, email). Any prior
// pending invitation for the pair is revoked, so the newest token is the only
// claimable one. Returns the stored invitation and the raw token; only the
// token's fingerprint is persisted.
func (s *TeamService) InviteMember(
	ctx context.Context,
	businessID string,
	requesterID string,
	requesterRole domain.Role,
	email, name string,
	role domain.Role,
	permissions domain.PermissionSet,
) (domain.Invitation, string, error) {
	log := slogx.FromContext(ctx)

	// 1. Only the owner invites.
	business, err := s.requireOwner(ctx, businessID, requesterID, requesterRole)
	if err != nil {
		return domain.Invitation{}, "", err
	}

	// 2. Platform admins and clients are never invited onto a team.
	if !role.Invitable() {
		log.Warn("attempted to invite non-invitable role",
			slog.String("business_id", businessID),
			slog.String("role", role.String()),
		)
		return domain.Invitation{}, "", ErrNotInvitableRole
	}

	// 3. Generate the single-use token and fingerprint it.
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate invitation token", slog.Any("error", err))
		return domain.Invitation{}, "", err
	}

	now := time.Now().UTC()
	invitation := domain.Invitation{
		ID:          idx.New().String(),
		BusinessID:  businessID,
		Email:       domain.NormalizeEmail(email),
		Name:        name,
		Role:        role,
		Permissions: permissions,
		TokenHash:   cryptox.FingerprintToken(token),
		Status:      domain.InvitationPending,
		ExpiresAt:   now.Add(domain.InvitationTTL),
	}

	// 4. Revoke prior pending invitations, store the new one, and track the
	// membership as invited, atomically. An existing joined_at survives the
	// upsert so re-inviting an active member keeps their history.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Invitations().RevokePending(ctx, businessID, invitation.Email); err != nil {
			return err
		}
		if err := tx.Invitations().Create(ctx, invitation); err != nil {
			return err
		}
		_, err := tx.Members().Upsert(ctx, domain.Member{
			ID:          idx.New().String(),
			BusinessID:  businessID,
			Email:       invitation.Email,
			Name:        name,
			Role:        role,
			Status:      domain.MemberInvited,
			Permissions: permissions,
		})
		return err
	})
	if err != nil {
		log.Error("failed to store invitation", slog.Any("error", err))
		return domain.Invitation{}, "", err
	}

	// 5. Delivery is best effort: a down mail relay must not void the
	// invitation that is already committed.
	subject, body := mail.InviteEmail(s.FrontendBaseURL, business.Name, token)
	if err := s.Mailer.Send(ctx, invitation.Email, subject, body); err != nil {
		log.Warn("failed to send invitation email",
			slog.String("invitation_id", invitation.ID),
			slog.Any("error", err),
		)
	}

	log.Info("invitation issued",
		slog.String("invitation_id", invitation.ID),
		slog.String("business_id", businessID),
		slog.String("role", role.String()),
		slog.Time("expires_at", invitation.ExpiresAt),
	)
	return invitation, token, nil
}

// ClaimInvite redeems an invitation token, creating or binding the account
// and activating the membership. The flow is not idempotent: a second claim
// of the same token is rejected.
func (s *TeamService) ClaimInvite(ctx context.Context, token, name, password string) (LoginResult, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// 1. Look up by fingerprint. Unknown tokens are indistinguishable from
	// never-issued ones.
	invitation, err := s.Store.Invitations().GetByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInviteInvalid
		}
		log.Error("failed to fetch invitation", slog.Any("error", err))
		return LoginResult{}, err
	}

	// 2. Single use: anything past pending is spent.
	if invitation.Status != domain.InvitationPending {
		log.Warn("claim attempted on spent invitation",
			slog.String("invitation_id", invitation.ID),
			slog.String("status", string(invitation.Status)),
		)
		return LoginResult{}, ErrInviteUsed
	}

	// 3. Closed expiry boundary: a claim at the exact expiry instant fails.
	if invitation.Expired(now) {
		return LoginResult{}, ErrInviteExpired
	}

	// 4. The claimed password must satisfy the same policy as registration.
	if err := cryptox.ValidatePasswordStrength(password); err != nil {
		return LoginResult{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return LoginResult{}, err
	}

	if name == "" {
		name = invitation.Name
	}

	// 5. Bind or create the account. An account already attached to a
	// different business cannot be captured by this invitation.
	account, err := s.Store.Accounts().GetByEmail(ctx, invitation.Email)
	switch {
	case err == nil:
		if account.BusinessID != "" && account.BusinessID != invitation.BusinessID {
			log.Warn("claim attempted by account of another business",
				slog.String("invitation_id", invitation.ID),
				slog.String("account_id", account.ID),
			)
			return LoginResult{}, ErrAccountBusinessConflict
		}
		account.Name = name
		account.Role = invitation.Role
		account.BusinessID = invitation.BusinessID
		account.Permissions = invitation.Permissions
		account.PasswordHash = hash
		account.MustChangePassword = false
		account.FailedAttempts = 0
		account.LockedUntil = nil
	case errors.Is(err, store.ErrNotFound):
		account = domain.Account{
			ID:           idx.New().String(),
			Email:        invitation.Email,
			Name:         name,
			Role:         invitation.Role,
			PasswordHash: hash,
			BusinessID:   invitation.BusinessID,
			Permissions:  invitation.Permissions,
		}
	default:
		log.Error("failed to fetch account", slog.Any("error", err))
		return LoginResult{}, err
	}

	// 6. Account write, membership activation and token consumption commit
	// together or not at all.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if account.CreatedAt.IsZero() {
			if err := tx.Accounts().Create(ctx, account); err != nil {
				return err
			}
		} else {
			if err := tx.Accounts().Update(ctx, account); err != nil {
				return err
			}
		}

		member, err := tx.Members().Get(ctx, invitation.BusinessID, invitation.Email)
		joinedAt := &now
		if err == nil && member.JoinedAt != nil {
			joinedAt = member.JoinedAt
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if _, err := tx.Members().Upsert(ctx, domain.Member{
			ID:          idx.New().String(),
			BusinessID:  invitation.BusinessID,
			Email:       invitation.Email,
			Name:        name,
			Role:        invitation.Role,
			Status:      domain.MemberActive,
			Permissions: invitation.Permissions,
			JoinedAt:    joinedAt,
		}); err != nil {
			return err
		}

		return tx.Invitations().UpdateStatus(ctx, invitation.ID, domain.InvitationAccepted)
	})
	if err != nil {
		log.Error("failed to claim invitation",
			slog.String("invitation_id", invitation.ID),
			slog.Any("error", err),
		)
		return LoginResult{}, err
	}

	sessionToken, err := s.Sessions.Issue(account)
	if err != nil {
		log.Error("failed to issue session", slog.Any("error", err))
		return LoginResult{}, err
	}

	log.Info("invitation claimed",
		slog.String("invitation_id", invitation.ID),
		slog.String("account_id", account.ID),
		slog.String("business_id", invitation.BusinessID),
	)
	return LoginResult{Token: sessionToken, Account: account}, nil
}

// ListInvitations lists a business's invitations, newest first.
func (s *TeamService) ListInvitations(ctx context.Context, businessID, requesterID string, requesterRole domain.Role) ([]domain.Invitation, error) {
	if _, err := s.requireOwner(ctx, businessID, requesterID, requesterRole); err != nil {
		return nil, err
	}
	return s.Store.Invitations().ListByBusiness(ctx, businessID)
}

// ListMembers lists a business's team members.
func (s *TeamService) ListMembers(ctx context.Context, businessID string) ([]domain.Member, error) {
	return s.Store.Members().ListByBusiness(ctx, businessID)
}

// AddMember creates a membership directly, without the invitation flow. The
// same upsert and the same email-conflict rule apply as for invite claims.
func (s *TeamService) AddMember(
	ctx context.Context,
	businessID, requesterID string,
	requesterRole domain.Role,
	email, name string,
	role domain.Role,
	permissions domain.PermissionSet,
) (domain.Member, error) {
	if _, err := s.requireOwner(ctx, businessID, requesterID, requesterRole); err != nil {
		return domain.Member{}, err
	}
	if !role.Invitable() {
		return domain.Member{}, ErrNotInvitableRole
	}

	email = domain.NormalizeEmail(email)

	account, err := s.Store.Accounts().GetByEmail(ctx, email)
	if err == nil && account.BusinessID != "" && account.BusinessID != businessID {
		return domain.Member{}, ErrAccountBusinessConflict
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Member{}, err
	}

	return s.Store.Members().Upsert(ctx, domain.Member{
		ID:          idx.New().String(),
		BusinessID:  businessID,
		Email:       email,
		Name:        name,
		Role:        role,
		Status:      domain.MemberActive,
		Permissions: permissions,
	})
}

// UpdateMember rewrites a member's role, status and permission set.
func (s *TeamService) UpdateMember(
	ctx context.Context,
	businessID, requesterID string,
	requesterRole domain.Role,
	memberID string,
	role domain.Role,
	status domain.MemberStatus,
	permissions domain.PermissionSet,
) (domain.Member, error) {
	business, err := s.requireOwner(ctx, businessID, requesterID, requesterRole)
	if err != nil {
		return domain.Member{}, err
	}
	if !role.Invitable() {
		return domain.Member{}, ErrNotInvitableRole
	}

	member, err := s.Store.Members().GetByID(ctx, businessID, memberID)
	if err != nil {
		return domain.Member{}, err
	}

	// The owner's own membership cannot be demoted or deactivated.
	if owned, err := s.isOwnerMembership(ctx, business, member); err != nil {
		return domain.Member{}, err
	} else if owned {
		return domain.Member{}, ErrOwnerMembership
	}

	member.Role = role
	member.Status = status
	member.Permissions = permissions
	return s.Store.Members().Upsert(ctx, member)
}

// RemoveMember deletes a membership. The owner's own row is untouchable.
func (s *TeamService) RemoveMember(
	ctx context.Context,
	businessID, requesterID string,
	requesterRole domain.Role,
	memberID string,
) error {
	log := slogx.FromContext(ctx)

	business, err := s.requireOwner(ctx, businessID, requesterID, requesterRole)
	if err != nil {
		return err
	}

	member, err := s.Store.Members().GetByID(ctx, businessID, memberID)
	if err != nil {
		return err
	}

	if owned, err := s.isOwnerMembership(ctx, business, member); err != nil {
		return err
	} else if owned {
		log.Warn("attempted to remove owner membership",
			slog.String("business_id", businessID),
			slog.String("member_id", memberID),
		)
		return ErrOwnerMembership
	}

	return s.Store.Members().Delete(ctx, businessID, memberID)
}

func (s *TeamService) isOwnerMembership(ctx context.Context, business domain.Business, member domain.Member) (bool, error) {
	owner, err := s.Store.Accounts().GetByID(ctx, business.OwnerAccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return owner.Email == member.Email, nil
}
