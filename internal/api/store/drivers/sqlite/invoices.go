package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
)

type invoicesRepo struct {
	q dbtx
}

const invoiceColumns = `id, business_id, client_id, number, status, items, amount, currency,
	issued_on, due_on, notes, created_at, updated_at`

// encodeItems serializes line items for the JSON column. A nil slice stores
// as an empty array so the column is never null.
func encodeItems(items []domain.InvoiceItem) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func scanInvoice(row rowScanner) (domain.Invoice, error) {
	var (
		inv    domain.Invoice
		status string
		items  string
	)
	err := row.Scan(
		&inv.ID, &inv.BusinessID, &inv.ClientID, &inv.Number, &status, &items, &inv.Amount,
		&inv.Currency, &inv.IssuedOn, &inv.DueOn, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return domain.Invoice{}, mapNotFound(err)
	}

	inv.Status = domain.InvoiceStatus(status)
	if items != "" && items != "[]" {
		if err := json.Unmarshal([]byte(items), &inv.Items); err != nil {
			return domain.Invoice{}, err
		}
	}
	return inv, nil
}

func (r *invoicesRepo) Create(ctx context.Context, inv domain.Invoice) error {
	items, err := encodeItems(inv.Items)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO invoices (
			id, business_id, client_id, number, status, items, amount, currency,
			issued_on, due_on, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.BusinessID, inv.ClientID, inv.Number, string(inv.Status), items,
		inv.Amount, inv.Currency, inv.IssuedOn, inv.DueOn, inv.Notes, now, now,
	)
	return mapConflict(err)
}

func (r *invoicesRepo) GetByID(ctx context.Context, businessID, id string) (domain.Invoice, error) {
	return scanInvoice(r.q.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE business_id = ? AND id = ?`,
		businessID, id))
}

func (r *invoicesRepo) ListByBusiness(ctx context.Context, businessID string) ([]domain.Invoice, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE business_id = ? ORDER BY created_at DESC`,
		businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *invoicesRepo) Update(ctx context.Context, inv domain.Invoice) error {
	items, err := encodeItems(inv.Items)
	if err != nil {
		return err
	}

	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE invoices SET
			client_id = ?, number = ?, status = ?, items = ?, amount = ?, currency = ?,
			issued_on = ?, due_on = ?, notes = ?, updated_at = ?
		WHERE business_id = ? AND id = ?`,
		inv.ClientID, inv.Number, string(inv.Status), items, inv.Amount, inv.Currency,
		inv.IssuedOn, inv.DueOn, inv.Notes, time.Now().UTC(), inv.BusinessID, inv.ID,
	))
}

func (r *invoicesRepo) Delete(ctx context.Context, businessID, id string) error {
	return mustAffect(r.q.ExecContext(ctx,
		`DELETE FROM invoices WHERE business_id = ? AND id = ?`, businessID, id))
}
