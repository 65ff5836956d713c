package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/mail"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/internal/api/store/drivers/sqlite"
	"github.com/tallyworks/tally/pkg/cryptox"
	"github.com/tallyworks/tally/pkg/idx"
	"github.com/tallyworks/tally/pkg/jwtx"
)

type testEnv struct {
	Store    store.Store
	Sessions *SessionIssuer
	Auth     *AuthService
	Team     *TeamService
	Business *BusinessService
	Reg      *RegistrationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "tally_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	tokens, err := jwtx.NewHS256("test-secret", "tally-test", time.Hour)
	require.NoError(t, err)
	sessions := &SessionIssuer{Tokens: tokens}

	return &testEnv{
		Store:    s,
		Sessions: sessions,
		Auth:     &AuthService{Store: s, Sessions: sessions},
		Team: &TeamService{
			Store:           s,
			Sessions:        sessions,
			Mailer:          mail.LogMailer{},
			FrontendBaseURL: "https://app.test",
		},
		Business: &BusinessService{Store: s},
		Reg: &RegistrationService{
			Store:           s,
			Mailer:          mail.LogMailer{},
			FrontendBaseURL: "https://app.test",
		},
	}
}

// seedOwner creates an owner account with its business.
func (e *testEnv) seedOwner(t *testing.T, email string) (domain.Account, domain.Business) {
	t.Helper()
	ctx := context.Background()

	hash, err := cryptox.HashPassword("Owner1234pass")
	require.NoError(t, err)

	business := domain.Business{
		ID:       idx.New().String(),
		Name:     "Seed Pty Ltd",
		Currency: "AUD",
	}
	account := domain.Account{
		ID:           idx.New().String(),
		Email:        domain.NormalizeEmail(email),
		Name:         "Seed Owner",
		Role:         domain.RoleOwner,
		PasswordHash: hash,
		BusinessID:   business.ID,
		Permissions:  domain.NewPermissionSet(),
	}
	business.OwnerAccountID = account.ID

	require.NoError(t, e.Store.Accounts().Create(ctx, account))
	require.NoError(t, e.Store.Businesses().Create(ctx, business))
	return account, business
}
