package sqlite

import (
	"context"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
)

type expensesRepo struct {
	q dbtx
}

const expenseColumns = `id, business_id, category, amount, incurred_on, note, created_at, updated_at`

func scanExpense(row rowScanner) (domain.Expense, error) {
	var e domain.Expense
	err := row.Scan(
		&e.ID, &e.BusinessID, &e.Category, &e.Amount, &e.IncurredOn, &e.Note,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return domain.Expense{}, mapNotFound(err)
	}
	return e, nil
}

func (r *expensesRepo) Create(ctx context.Context, e domain.Expense) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO expenses (
			id, business_id, category, amount, incurred_on, note, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BusinessID, e.Category, e.Amount, e.IncurredOn, e.Note, now, now,
	)
	return mapConflict(err)
}

func (r *expensesRepo) GetByID(ctx context.Context, businessID, id string) (domain.Expense, error) {
	return scanExpense(r.q.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE business_id = ? AND id = ?`,
		businessID, id))
}

func (r *expensesRepo) ListByBusiness(ctx context.Context, businessID string) ([]domain.Expense, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE business_id = ? ORDER BY incurred_on DESC`,
		businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *expensesRepo) Update(ctx context.Context, e domain.Expense) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE expenses SET category = ?, amount = ?, incurred_on = ?, note = ?, updated_at = ?
		WHERE business_id = ? AND id = ?`,
		e.Category, e.Amount, e.IncurredOn, e.Note, time.Now().UTC(), e.BusinessID, e.ID,
	))
}

func (r *expensesRepo) Delete(ctx context.Context, businessID, id string) error {
	return mustAffect(r.q.ExecContext(ctx,
		`DELETE FROM expenses WHERE business_id = ? AND id = ?`, businessID, id))
}
