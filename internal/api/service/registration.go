package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/mail"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/cryptox"
	"github.com/tallyworks/tally/pkg/idx"
	"github.com/tallyworks/tally/pkg/slogx"
)

var ErrRegistrationClosed = errors.New("registration request already decided")

// RegistrationService handles the reviewed signup flow: an applicant submits
// a request, a platform admin approves or rejects it. Approval creates the
// owner account and the business atomically.
type RegistrationService struct {
	Store           store.Store
	Mailer          mail.Mailer
	FrontendBaseURL string
}

// Submit files a registration request for platform review.
func (s *RegistrationService) Submit(ctx context.Context, email, name, businessName string) (domain.RegistrationRequest, error) {
	log := slogx.FromContext(ctx)

	// An existing account means there is nothing to review.
	_, err := s.Store.Accounts().GetByEmail(ctx, email)
	if err == nil {
		return domain.RegistrationRequest{}, ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to check account", slog.Any("error", err))
		return domain.RegistrationRequest{}, err
	}

	request := domain.RegistrationRequest{
		ID:           idx.New().String(),
		Email:        domain.NormalizeEmail(email),
		Name:         name,
		BusinessName: businessName,
		Status:       domain.RegistrationPending,
	}
	if err := s.Store.Registrations().Create(ctx, request); err != nil {
		log.Error("failed to create registration request", slog.Any("error", err))
		return domain.RegistrationRequest{}, err
	}

	log.Info("registration request submitted",
		slog.String("request_id", request.ID),
		slog.String("business_name", businessName),
	)
	return request, nil
}

// ListPending returns requests awaiting review, oldest first.
func (s *RegistrationService) ListPending(ctx context.Context) ([]domain.RegistrationRequest, error) {
	return s.Store.Registrations().ListPending(ctx)
}

// Approve accepts a pending request: it creates the owner account with a
// generated temporary password and a forced change flag, creates the
// business, and marks the request approved, all in one transaction. A partial
// failure leaves no orphan account behind.
func (s *RegistrationService) Approve(ctx context.Context, requestID string) (domain.Business, error) {
	log := slogx.FromContext(ctx)

	// 1. Only pending requests can be decided.
	request, err := s.Store.Registrations().GetByID(ctx, requestID)
	if err != nil {
		return domain.Business{}, err
	}
	if request.Status != domain.RegistrationPending {
		return domain.Business{}, ErrRegistrationClosed
	}

	// 2. Temporary credentials; the owner must change them on first login.
	tempPassword, err := cryptox.GeneratePassword()
	if err != nil {
		log.Error("failed to generate temporary password", slog.Any("error", err))
		return domain.Business{}, err
	}
	hash, err := cryptox.HashPassword(tempPassword)
	if err != nil {
		log.Error("failed to hash temporary password", slog.Any("error", err))
		return domain.Business{}, err
	}

	business := domain.Business{
		ID:   idx.New().String(),
		Name: request.BusinessName,
	}
	account := domain.Account{
		ID:                 idx.New().String(),
		Email:              request.Email,
		Name:               request.Name,
		Role:               domain.RoleOwner,
		PasswordHash:       hash,
		BusinessID:         business.ID,
		Permissions:        domain.NewPermissionSet(),
		MustChangePassword: true,
	}
	business.OwnerAccountID = account.ID

	// 3. Account, business and request decision commit together.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().Create(ctx, account); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}
		if err := tx.Businesses().Create(ctx, business); err != nil {
			return err
		}
		return tx.Registrations().UpdateStatus(ctx, request.ID, domain.RegistrationApproved)
	})
	if err != nil {
		log.Error("failed to approve registration",
			slog.String("request_id", request.ID),
			slog.Any("error", err),
		)
		return domain.Business{}, err
	}

	// 4. Best-effort notification carrying the temporary password.
	subject, body := mail.ApprovalEmail(s.FrontendBaseURL, business.Name, tempPassword)
	if err := s.Mailer.Send(ctx, account.Email, subject, body); err != nil {
		log.Warn("failed to send approval email",
			slog.String("request_id", request.ID),
			slog.Any("error", err),
		)
	}

	log.Info("registration approved",
		slog.String("request_id", request.ID),
		slog.String("business_id", business.ID),
		slog.String("owner_account_id", account.ID),
	)
	return business, nil
}

// Reject declines a pending request.
func (s *RegistrationService) Reject(ctx context.Context, requestID string) error {
	request, err := s.Store.Registrations().GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status != domain.RegistrationPending {
		return ErrRegistrationClosed
	}
	return s.Store.Registrations().UpdateStatus(ctx, requestID, domain.RegistrationRejected)
}
