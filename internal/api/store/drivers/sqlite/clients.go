package sqlite

import (
	"context"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
)

type clientsRepo struct {
	q dbtx
}

const clientColumns = `id, business_id, name, email, phone, address, created_at, updated_at`

func scanClient(row rowScanner) (domain.Client, error) {
	var c domain.Client
	err := row.Scan(
		&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.Phone, &c.Address,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	return c, nil
}

func (r *clientsRepo) Create(ctx context.Context, c domain.Client) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO clients (
			id, business_id, name, email, phone, address, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BusinessID, c.Name, c.Email, c.Phone, c.Address, now, now,
	)
	return mapConflict(err)
}

func (r *clientsRepo) GetByID(ctx context.Context, businessID, id string) (domain.Client, error) {
	return scanClient(r.q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE business_id = ? AND id = ?`,
		businessID, id))
}

func (r *clientsRepo) ListByBusiness(ctx context.Context, businessID string) ([]domain.Client, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE business_id = ? ORDER BY name`,
		businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *clientsRepo) Update(ctx context.Context, c domain.Client) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE clients SET name = ?, email = ?, phone = ?, address = ?, updated_at = ?
		WHERE business_id = ? AND id = ?`,
		c.Name, c.Email, c.Phone, c.Address, time.Now().UTC(), c.BusinessID, c.ID,
	))
}

func (r *clientsRepo) Delete(ctx context.Context, businessID, id string) error {
	return mustAffect(r.q.ExecContext(ctx,
		`DELETE FROM clients WHERE business_id = ? AND id = ?`, businessID, id))
}
