package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
)

type businessesRepo struct {
	q dbtx
}

const businessColumns = `id, owner_account_id, name, address, tax_id, currency, tax_rate,
	profile_complete, created_at, updated_at`

func scanBusiness(row *sql.Row) (domain.Business, error) {
	var b domain.Business
	err := row.Scan(
		&b.ID, &b.OwnerAccountID, &b.Name, &b.Address, &b.TaxID, &b.Currency,
		&b.TaxRate, &b.ProfileComplete, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Business{}, mapNotFound(err)
	}
	return b, nil
}

func (r *businessesRepo) GetByID(ctx context.Context, id string) (domain.Business, error) {
	return scanBusiness(r.q.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id))
}

func (r *businessesRepo) GetByOwner(ctx context.Context, ownerAccountID string) (domain.Business, error) {
	return scanBusiness(r.q.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE owner_account_id = ? ORDER BY created_at LIMIT 1`,
		ownerAccountID))
}

func (r *businessesRepo) Create(ctx context.Context, b domain.Business) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO businesses (
			id, owner_account_id, name, address, tax_id, currency, tax_rate,
			profile_complete, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerAccountID, b.Name, b.Address, b.TaxID, b.Currency, b.TaxRate,
		b.ProfileComplete, now, now,
	)
	return mapConflict(err)
}

func (r *businessesRepo) Update(ctx context.Context, b domain.Business) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE businesses SET
			name = ?, address = ?, tax_id = ?, currency = ?, tax_rate = ?,
			profile_complete = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, b.Address, b.TaxID, b.Currency, b.TaxRate, b.ProfileComplete,
		time.Now().UTC(), b.ID,
	))
}
