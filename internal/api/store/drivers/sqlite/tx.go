package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tallyworks/tally/internal/api/store"
)

type txStore struct {
	tx *sql.Tx
	q  dbtx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx, q: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Accounts() store.Accounts           { return &accountsRepo{q: t.q} }
func (t *txStore) Businesses() store.Businesses       { return &businessesRepo{q: t.q} }
func (t *txStore) Members() store.Members             { return &membersRepo{q: t.q} }
func (t *txStore) Invitations() store.Invitations     { return &invitationsRepo{q: t.q} }
func (t *txStore) Registrations() store.Registrations { return &registrationsRepo{q: t.q} }
func (t *txStore) Invoices() store.Invoices           { return &invoicesRepo{q: t.q} }
func (t *txStore) Clients() store.Clients             { return &clientsRepo{q: t.q} }
func (t *txStore) Expenses() store.Expenses           { return &expensesRepo{q: t.q} }

func (t *txStore) ApplyMigrations() error {
	return errors.New("sqlite: migrations cannot run inside a transaction")
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, errors.New("sqlite: nested transactions are not supported")
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	// Already inside a transaction; run fn against it.
	return fn(t)
}

func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }
