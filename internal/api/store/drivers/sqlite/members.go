package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
)

type membersRepo struct {
	q dbtx
}

const memberColumns = `id, business_id, email, name, role, status, permissions, joined_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (domain.Member, error) {
	var (
		m           domain.Member
		role        string
		status      string
		permissions string
		joinedAt    sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.BusinessID, &m.Email, &m.Name, &role, &status, &permissions,
		&joinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Member{}, mapNotFound(err)
	}

	m.Role = domain.Role(role)
	m.Status = domain.MemberStatus(status)
	m.Permissions = domain.ParsePermissions(permissions)
	m.JoinedAt = mapNullTimePtr(joinedAt)
	return m, nil
}

func (r *membersRepo) Get(ctx context.Context, businessID, email string) (domain.Member, error) {
	return scanMember(r.q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE business_id = ? AND email = ?`,
		businessID, domain.NormalizeEmail(email)))
}

func (r *membersRepo) GetByID(ctx context.Context, businessID, memberID string) (domain.Member, error) {
	return scanMember(r.q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE business_id = ? AND id = ?`,
		businessID, memberID))
}

func (r *membersRepo) ListByBusiness(ctx context.Context, businessID string) ([]domain.Member, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE business_id = ? ORDER BY created_at`,
		businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert inserts or updates the membership row for (business_id, email),
// relying on the unique index on that pair. An existing joined_at wins over
// an incoming NULL so acceptance timestamps survive re-invites.
func (r *membersRepo) Upsert(ctx context.Context, m domain.Member) (domain.Member, error) {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO members (
			id, business_id, email, name, role, status, permissions, joined_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (business_id, email) DO UPDATE SET
			name        = excluded.name,
			role        = excluded.role,
			status      = excluded.status,
			permissions = excluded.permissions,
			joined_at   = COALESCE(members.joined_at, excluded.joined_at),
			updated_at  = excluded.updated_at`,
		m.ID, m.BusinessID, domain.NormalizeEmail(m.Email), m.Name, m.Role.String(),
		string(m.Status), m.Permissions.Storage(), mapOptionalTime(m.JoinedAt), now, now,
	)
	if err != nil {
		return domain.Member{}, err
	}

	return r.Get(ctx, m.BusinessID, m.Email)
}

func (r *membersRepo) Delete(ctx context.Context, businessID, memberID string) error {
	return mustAffect(r.q.ExecContext(ctx,
		`DELETE FROM members WHERE business_id = ? AND id = ?`,
		businessID, memberID))
}
