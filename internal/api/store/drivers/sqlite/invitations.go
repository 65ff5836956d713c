package sqlite

import (
	"context"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
)

type invitationsRepo struct {
	q dbtx
}

const invitationColumns = `id, business_id, email, name, role, permissions, token_hash,
	status, expires_at, created_at, updated_at`

func scanInvitation(row rowScanner) (domain.Invitation, error) {
	var (
		inv         domain.Invitation
		role        string
		permissions string
		status      string
	)
	err := row.Scan(
		&inv.ID, &inv.BusinessID, &inv.Email, &inv.Name, &role, &permissions,
		&inv.TokenHash, &status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}

	inv.Role = domain.Role(role)
	inv.Permissions = domain.ParsePermissions(permissions)
	inv.Status = domain.InvitationStatus(status)
	return inv, nil
}

func (r *invitationsRepo) Create(ctx context.Context, inv domain.Invitation) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO invitations (
			id, business_id, email, name, role, permissions, token_hash, status,
			expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.BusinessID, domain.NormalizeEmail(inv.Email), inv.Name,
		inv.Role.String(), inv.Permissions.Storage(), inv.TokenHash,
		string(inv.Status), inv.ExpiresAt, now, now,
	)
	return mapConflict(err)
}

func (r *invitationsRepo) GetByTokenHash(ctx context.Context, hash string) (domain.Invitation, error) {
	return scanInvitation(r.q.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token_hash = ?`, hash))
}

func (r *invitationsRepo) RevokePending(ctx context.Context, businessID, email string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE invitations SET status = ?, updated_at = ?
		WHERE business_id = ? AND email = ? AND status = ?`,
		string(domain.InvitationRevoked), time.Now().UTC(),
		businessID, domain.NormalizeEmail(email), string(domain.InvitationPending),
	)
	return err
}

func (r *invitationsRepo) UpdateStatus(ctx context.Context, id string, status domain.InvitationStatus) error {
	return mustAffect(r.q.ExecContext(ctx,
		`UPDATE invitations SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id))
}

func (r *invitationsRepo) ListByBusiness(ctx context.Context, businessID string) ([]domain.Invitation, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE business_id = ? ORDER BY created_at DESC`,
		businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
