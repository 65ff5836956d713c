package sqlite

import (
	"context"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
)

type registrationsRepo struct {
	q dbtx
}

const registrationColumns = `id, email, name, business_name, status, created_at, updated_at`

func scanRegistration(row rowScanner) (domain.RegistrationRequest, error) {
	var (
		req    domain.RegistrationRequest
		status string
	)
	err := row.Scan(
		&req.ID, &req.Email, &req.Name, &req.BusinessName, &status,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return domain.RegistrationRequest{}, mapNotFound(err)
	}

	req.Status = domain.RegistrationStatus(status)
	return req, nil
}

func (r *registrationsRepo) Create(ctx context.Context, req domain.RegistrationRequest) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO registration_requests (
			id, email, name, business_name, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, domain.NormalizeEmail(req.Email), req.Name, req.BusinessName,
		string(req.Status), now, now,
	)
	return mapConflict(err)
}

func (r *registrationsRepo) GetByID(ctx context.Context, id string) (domain.RegistrationRequest, error) {
	return scanRegistration(r.q.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registration_requests WHERE id = ?`, id))
}

func (r *registrationsRepo) ListPending(ctx context.Context) ([]domain.RegistrationRequest, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+registrationColumns+` FROM registration_requests WHERE status = ? ORDER BY created_at`,
		string(domain.RegistrationPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RegistrationRequest
	for rows.Next() {
		req, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *registrationsRepo) UpdateStatus(ctx context.Context, id string, status domain.RegistrationStatus) error {
	return mustAffect(r.q.ExecContext(ctx,
		`UPDATE registration_requests SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id))
}
