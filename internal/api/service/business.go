package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/idx"
	"github.com/tallyworks/tally/pkg/slogx"
)

var ErrAlreadyOwner = errors.New("account already owns a business")

type BusinessService struct {
	Store store.Store
}

// BusinessProfile carries the mutable profile fields of a business.
type BusinessProfile struct {
	Name     string
	Address  string
	TaxID    string
	Currency string
	TaxRate  float64
}

// Create opens a new business with the caller as owner. The caller's account
// is promoted to the owner role and attached to the business in the same
// transaction.
func (s *BusinessService) Create(ctx context.Context, ownerAccountID string, profile BusinessProfile) (domain.Business, error) {
	log := slogx.FromContext(ctx)

	// 1. One business per owner account.
	_, err := s.Store.Businesses().GetByOwner(ctx, ownerAccountID)
	if err == nil {
		return domain.Business{}, ErrAlreadyOwner
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to check existing ownership", slog.Any("error", err))
		return domain.Business{}, err
	}

	business := domain.Business{
		ID:             idx.New().String(),
		OwnerAccountID: ownerAccountID,
		Name:           profile.Name,
		Address:        profile.Address,
		TaxID:          profile.TaxID,
		Currency:       profile.Currency,
		TaxRate:        profile.TaxRate,
	}
	business.RecomputeProfileComplete()

	// 2. Business row and owner promotion commit together.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Businesses().Create(ctx, business); err != nil {
			return err
		}

		account, err := tx.Accounts().GetByID(ctx, ownerAccountID)
		if err != nil {
			return err
		}
		account.Role = domain.RoleOwner
		account.BusinessID = business.ID
		return tx.Accounts().Update(ctx, account)
	})
	if err != nil {
		log.Error("failed to create business", slog.Any("error", err))
		return domain.Business{}, err
	}

	log.Info("business created",
		slog.String("business_id", business.ID),
		slog.String("owner_account_id", ownerAccountID),
	)
	return business, nil
}

// Get fetches a business by id.
func (s *BusinessService) Get(ctx context.Context, businessID string) (domain.Business, error) {
	return s.Store.Businesses().GetByID(ctx, businessID)
}

// Update rewrites the profile and recomputes completeness.
func (s *BusinessService) Update(ctx context.Context, businessID string, profile BusinessProfile) (domain.Business, error) {
	business, err := s.Store.Businesses().GetByID(ctx, businessID)
	if err != nil {
		return domain.Business{}, err
	}

	business.Name = profile.Name
	business.Address = profile.Address
	business.TaxID = profile.TaxID
	business.Currency = profile.Currency
	business.TaxRate = profile.TaxRate
	business.RecomputeProfileComplete()

	if err := s.Store.Businesses().Update(ctx, business); err != nil {
		return domain.Business{}, err
	}
	return business, nil
}
