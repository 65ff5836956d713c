package store

import (
	"context"
	"errors"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today,
// postgres later) implement this. It exposes sub-repositories to keep
// concerns tidy and testable.
type Store interface {
	Accounts() Accounts
	Businesses() Businesses
	Members() Members
	Invitations() Invitations
	Registrations() Registrations
	Invoices() Invoices
	Clients() Clients
	Expenses() Expenses

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to handle multi-step writes (e.g. registration
	// approval creating an account and a business together).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetByID returns an account by id.
	GetByID(ctx context.Context, id string) (domain.Account, error)

	// GetByEmail looks up by normalized lower-case email.
	GetByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetByOAuthSubject looks up by (provider, provider-side subject id).
	GetByOAuthSubject(ctx context.Context, provider, subject string) (domain.Account, error)

	// Create inserts a new account (id is provided by app via ULID).
	// A duplicate email surfaces as ErrAlreadyExists.
	Create(ctx context.Context, a domain.Account) error

	// Update rewrites the mutable fields of an account.
	Update(ctx context.Context, a domain.Account) error

	// UpdateLoginState writes the failed-attempt counter and lock expiry.
	UpdateLoginState(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error

	// UpdatePassword sets a new hash and clears the forced-change flag,
	// attempt counter and lock expiry together.
	UpdatePassword(ctx context.Context, id string, newHash string) error

	// UpdateTOTPSecret sets (or clears, with "") the TOTP secret.
	UpdateTOTPSecret(ctx context.Context, id string, secret string) error
}

type Businesses interface {
	GetByID(ctx context.Context, id string) (domain.Business, error)
	GetByOwner(ctx context.Context, ownerAccountID string) (domain.Business, error)
	Create(ctx context.Context, b domain.Business) error
	Update(ctx context.Context, b domain.Business) error
}

type Members interface {
	// Get returns the membership row for (business, normalized email).
	Get(ctx context.Context, businessID, email string) (domain.Member, error)

	// GetByID returns a membership row by its id, scoped to a business.
	GetByID(ctx context.Context, businessID, memberID string) (domain.Member, error)

	// ListByBusiness returns all memberships of a business.
	ListByBusiness(ctx context.Context, businessID string) ([]domain.Member, error)

	// Upsert inserts or updates the membership row for (business, email).
	// Precondition: a unique index on (business_id, email); concurrent
	// upserts resolve last-write-wins. An existing joined_at is preserved
	// when the incoming value is nil.
	Upsert(ctx context.Context, m domain.Member) (domain.Member, error)

	// Delete removes a membership row.
	Delete(ctx context.Context, businessID, memberID string) error
}

type Invitations interface {
	Create(ctx context.Context, inv domain.Invitation) error

	// GetByTokenHash returns an invitation by token fingerprint regardless
	// of status; the service layer distinguishes used/expired/pending.
	GetByTokenHash(ctx context.Context, hash string) (domain.Invitation, error)

	// RevokePending marks all pending invitations for (business, email) as
	// revoked, superseding them.
	RevokePending(ctx context.Context, businessID, email string) error

	// UpdateStatus transitions an invitation's status.
	UpdateStatus(ctx context.Context, id string, status domain.InvitationStatus) error

	// ListByBusiness returns all invitations of a business (newest first).
	ListByBusiness(ctx context.Context, businessID string) ([]domain.Invitation, error)
}

type Registrations interface {
	Create(ctx context.Context, r domain.RegistrationRequest) error
	GetByID(ctx context.Context, id string) (domain.RegistrationRequest, error)
	ListPending(ctx context.Context) ([]domain.RegistrationRequest, error)
	UpdateStatus(ctx context.Context, id string, status domain.RegistrationStatus) error
}

// The CRUD leaves are all tenant-scoped: every read and write is keyed by
// business id, so "exists but not yours" is indistinguishable from absent.

type Invoices interface {
	Create(ctx context.Context, inv domain.Invoice) error
	GetByID(ctx context.Context, businessID, id string) (domain.Invoice, error)
	ListByBusiness(ctx context.Context, businessID string) ([]domain.Invoice, error)
	Update(ctx context.Context, inv domain.Invoice) error
	Delete(ctx context.Context, businessID, id string) error
}

type Clients interface {
	Create(ctx context.Context, c domain.Client) error
	GetByID(ctx context.Context, businessID, id string) (domain.Client, error)
	ListByBusiness(ctx context.Context, businessID string) ([]domain.Client, error)
	Update(ctx context.Context, c domain.Client) error
	Delete(ctx context.Context, businessID, id string) error
}

type Expenses interface {
	Create(ctx context.Context, e domain.Expense) error
	GetByID(ctx context.Context, businessID, id string) (domain.Expense, error)
	ListByBusiness(ctx context.Context, businessID string) ([]domain.Expense, error)
	Update(ctx context.Context, e domain.Expense) error
	Delete(ctx context.Context, businessID, id string) error
}
