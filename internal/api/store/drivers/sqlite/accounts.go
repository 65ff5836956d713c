package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
)

type accountsRepo struct {
	q dbtx
}

const accountColumns = `id, email, name, role, password_hash, oauth_provider, oauth_subject,
	business_id, permissions, must_change_password, failed_attempts, locked_until,
	totp_secret, created_at, updated_at`

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a           domain.Account
		role        string
		permissions string
		lockedUntil sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &role, &a.PasswordHash, &a.OAuthProvider, &a.OAuthSubject,
		&a.BusinessID, &permissions, &a.MustChangePassword, &a.FailedAttempts, &lockedUntil,
		&a.TOTPSecret, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.Role = domain.Role(role)
	a.Permissions = domain.ParsePermissions(permissions)
	a.LockedUntil = mapNullTimePtr(lockedUntil)
	return a, nil
}

func (r *accountsRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`,
		domain.NormalizeEmail(email)))
}

func (r *accountsRepo) GetByOAuthSubject(ctx context.Context, provider, subject string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE oauth_provider = ? AND oauth_subject = ?`,
		provider, subject))
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (
			id, email, name, role, password_hash, oauth_provider, oauth_subject,
			business_id, permissions, must_change_password, failed_attempts,
			locked_until, totp_secret, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, domain.NormalizeEmail(a.Email), a.Name, a.Role.String(), a.PasswordHash,
		a.OAuthProvider, a.OAuthSubject, a.BusinessID, a.Permissions.Storage(),
		a.MustChangePassword, a.FailedAttempts, mapOptionalTime(a.LockedUntil),
		a.TOTPSecret, now, now,
	)
	return mapConflict(err)
}

func (r *accountsRepo) Update(ctx context.Context, a domain.Account) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE accounts SET
			email = ?, name = ?, role = ?, password_hash = ?, oauth_provider = ?,
			oauth_subject = ?, business_id = ?, permissions = ?,
			must_change_password = ?, failed_attempts = ?, locked_until = ?,
			totp_secret = ?, updated_at = ?
		WHERE id = ?`,
		domain.NormalizeEmail(a.Email), a.Name, a.Role.String(), a.PasswordHash,
		a.OAuthProvider, a.OAuthSubject, a.BusinessID, a.Permissions.Storage(),
		a.MustChangePassword, a.FailedAttempts, mapOptionalTime(a.LockedUntil),
		a.TOTPSecret, time.Now().UTC(), a.ID,
	))
}

func (r *accountsRepo) UpdateLoginState(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE accounts SET failed_attempts = ?, locked_until = ?, updated_at = ?
		WHERE id = ?`,
		attempts, mapOptionalTime(lockedUntil), time.Now().UTC(), id,
	))
}

func (r *accountsRepo) UpdatePassword(ctx context.Context, id string, newHash string) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE accounts SET
			password_hash = ?, must_change_password = 0, failed_attempts = 0,
			locked_until = NULL, updated_at = ?
		WHERE id = ?`,
		newHash, time.Now().UTC(), id,
	))
}

func (r *accountsRepo) UpdateTOTPSecret(ctx context.Context, id string, secret string) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE accounts SET totp_secret = ?, updated_at = ? WHERE id = ?`,
		secret, time.Now().UTC(), id,
	))
}
