package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pquerna/otp/totp"

	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/slogx"
)

var (
	ErrMFAAlreadyEnrolled = errors.New("mfa already enrolled")
	ErrMFANotEnrolled     = errors.New("mfa not enrolled")
)

// MFAService manages the optional TOTP second factor. Enrollment is
// two-phase: Enroll hands the client a fresh secret, Activate persists it
// only after the client proves it can produce a valid code.
type MFAService struct {
	Store  store.Store
	Issuer string
}

// Enrollment is what the client needs to add the secret to an authenticator.
type Enrollment struct {
	Secret string
	URL    string // otpauth:// provisioning URL
}

// Enroll generates a provisional TOTP secret. Nothing is stored yet; the
// secret only takes effect once Activate verifies a code against it.
func (s *MFAService) Enroll(ctx context.Context, accountID string) (Enrollment, error) {
	account, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return Enrollment{}, err
	}
	if account.MFAEnabled() {
		return Enrollment{}, ErrMFAAlreadyEnrolled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: account.Email,
	})
	if err != nil {
		return Enrollment{}, err
	}

	return Enrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// Activate persists the secret after the client proves possession with a
// current code. From here on, password logins require a TOTP code.
func (s *MFAService) Activate(ctx context.Context, accountID, secret, code string) error {
	log := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.MFAEnabled() {
		return ErrMFAAlreadyEnrolled
	}

	if !totp.Validate(code, secret) {
		return ErrMFACodeInvalid
	}

	if err := s.Store.Accounts().UpdateTOTPSecret(ctx, accountID, secret); err != nil {
		log.Error("failed to store totp secret", slog.Any("error", err))
		return err
	}

	log.Info("mfa enrolled", slog.String("account_id", accountID))
	return nil
}

// Disable clears the second factor after a valid current code.
func (s *MFAService) Disable(ctx context.Context, accountID, code string) error {
	log := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.MFAEnabled() {
		return ErrMFANotEnrolled
	}

	if !totp.Validate(code, account.TOTPSecret) {
		return ErrMFACodeInvalid
	}

	if err := s.Store.Accounts().UpdateTOTPSecret(ctx, accountID, ""); err != nil {
		log.Error("failed to clear totp secret", slog.Any("error", err))
		return err
	}

	log.Info("mfa disabled", slog.String("account_id", accountID))
	return nil
}
