package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/cryptox"
	"github.com/tallyworks/tally/pkg/idx"
	"github.com/tallyworks/tally/pkg/slogx"
)

var (
	ErrInvalidCredentials        = errors.New("invalid email or password")
	ErrAccountLocked             = errors.New("account locked")
	ErrEmailTaken                = errors.New("email already registered")
	ErrMFACodeRequired           = errors.New("mfa code required")
	ErrMFACodeInvalid            = errors.New("invalid mfa code")
	ErrPasswordChangeNotRequired = errors.New("password change not required")
)

type AuthService struct {
	Store    store.Store
	Sessions *SessionIssuer
}

// Register creates a self-service account with no business attachment. The
// account can later claim an invitation, which binds it to a business and
// assigns its real role.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	// 1. Enforce the password policy up front.
	if err := cryptox.ValidatePasswordStrength(password); err != nil {
		return LoginResult{}, err
	}

	// 2. Hash and create; a duplicate email surfaces as a conflict.
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return LoginResult{}, err
	}

	account := domain.Account{
		ID:           idx.New().String(),
		Email:        domain.NormalizeEmail(email),
		Name:         name,
		Role:         domain.RoleClient,
		PasswordHash: hash,
		Permissions:  domain.NewPermissionSet(),
	}
	if err := s.Store.Accounts().Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return LoginResult{}, ErrEmailTaken
		}
		log.Error("failed to create account", slog.Any("error", err))
		return LoginResult{}, err
	}

	// 3. Mint a session straight away.
	token, err := s.Sessions.Issue(account)
	if err != nil {
		log.Error("failed to issue session", slog.Any("error", err))
		return LoginResult{}, err
	}

	log.Info("account registered",
		slog.String("account_id", account.ID),
		slog.String("email", account.Email),
	)
	return LoginResult{Token: token, Account: account}, nil
}

// Login authenticates by email and password, enforcing the lockout policy
// and, when enrolled, the TOTP second factor.
func (s *AuthService) Login(ctx context.Context, email, password, totpCode string) (LoginResult, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// 1. Look up the account. Unknown emails get the same answer as bad
	// passwords.
	account, err := s.Store.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		log.Error("failed to fetch account", slog.Any("error", err))
		return LoginResult{}, err
	}

	// 2. Lock check comes before any password comparison: a locked account
	// rejects even the correct password.
	if account.Locked(now) {
		log.Warn("login attempt on locked account",
			slog.String("account_id", account.ID),
		)
		return LoginResult{}, ErrAccountLocked
	}

	// 3. OAuth-only accounts have no password to compare.
	if account.PasswordHash == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	// 4. Compare; a mismatch advances the lockout state machine.
	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			if lerr := s.recordFailedAttempt(ctx, account, now); lerr != nil {
				return LoginResult{}, lerr
			}
			return LoginResult{}, ErrInvalidCredentials
		}
		log.Error("failed to verify password", slog.Any("error", err))
		return LoginResult{}, err
	}

	// 5. Second factor, when enrolled.
	if account.MFAEnabled() {
		if totpCode == "" {
			return LoginResult{}, ErrMFACodeRequired
		}
		if !totp.Validate(totpCode, account.TOTPSecret) {
			log.Warn("login attempt with invalid mfa code",
				slog.String("account_id", account.ID),
			)
			return LoginResult{}, ErrMFACodeInvalid
		}
	}

	// 6. Success resets the failure counter and clears any stale lock.
	if account.FailedAttempts != 0 || account.LockedUntil != nil {
		if err := s.Store.Accounts().UpdateLoginState(ctx, account.ID, 0, nil); err != nil {
			log.Error("failed to reset login state", slog.Any("error", err))
			return LoginResult{}, err
		}
		account.FailedAttempts = 0
		account.LockedUntil = nil
	}

	token, err := s.Sessions.Issue(account)
	if err != nil {
		log.Error("failed to issue session", slog.Any("error", err))
		return LoginResult{}, err
	}

	log.Info("login succeeded",
		slog.String("account_id", account.ID),
		slog.Bool("must_change_password", account.MustChangePassword),
	)
	return LoginResult{
		Token:              token,
		Account:            account,
		MustChangePassword: account.MustChangePassword,
	}, nil
}

// recordFailedAttempt advances the counter and, on the third consecutive
// failure, locks the account for an hour and resets the counter so the next
// window starts clean.
func (s *AuthService) recordFailedAttempt(ctx context.Context, account domain.Account, now time.Time) error {
	log := slogx.FromContext(ctx)

	attempts := account.FailedAttempts + 1
	var lockedUntil *time.Time
	if attempts >= domain.MaxLoginAttempts {
		until := now.Add(domain.LockoutDuration)
		lockedUntil = &until
		attempts = 0

		log.Warn("account locked after repeated failed logins",
			slog.String("account_id", account.ID),
			slog.Time("locked_until", until),
		)
	}

	if err := s.Store.Accounts().UpdateLoginState(ctx, account.ID, attempts, lockedUntil); err != nil {
		log.Error("failed to record failed login", slog.Any("error", err))
		return err
	}
	return nil
}

// ForceChangePassword completes the forced-change flow for accounts flagged
// at creation (registration approval) or by an administrator. It refuses when
// the flag is not set.
func (s *AuthService) ForceChangePassword(ctx context.Context, accountID, newPassword string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return LoginResult{}, err
	}
	if !account.MustChangePassword {
		return LoginResult{}, ErrPasswordChangeNotRequired
	}

	if err := cryptox.ValidatePasswordStrength(newPassword); err != nil {
		return LoginResult{}, err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return LoginResult{}, err
	}

	// Clears the flag, the attempt counter and any lock in one write.
	if err := s.Store.Accounts().UpdatePassword(ctx, account.ID, hash); err != nil {
		log.Error("failed to update password", slog.Any("error", err))
		return LoginResult{}, err
	}

	account.PasswordHash = hash
	account.MustChangePassword = false
	account.FailedAttempts = 0
	account.LockedUntil = nil

	token, err := s.Sessions.Issue(account)
	if err != nil {
		log.Error("failed to issue session", slog.Any("error", err))
		return LoginResult{}, err
	}

	log.Info("forced password change completed", slog.String("account_id", account.ID))
	return LoginResult{Token: token, Account: account}, nil
}

// ChangePassword is the regular self-service change: the current password
// must verify before the new one is accepted.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	log := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if err := cryptox.VerifyPassword(currentPassword, account.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return err
	}

	if err := cryptox.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return err
	}

	if err := s.Store.Accounts().UpdatePassword(ctx, account.ID, hash); err != nil {
		log.Error("failed to update password", slog.Any("error", err))
		return err
	}

	log.Info("password changed", slog.String("account_id", account.ID))
	return nil
}
