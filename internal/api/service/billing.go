package service

import (
	"context"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/idx"
)

// The CRUD leaves are deliberately thin: every operation is keyed by the
// resolved business id, so a record of another tenant is simply not found.

type InvoiceService struct {
	Store store.Store
}

// normalizeInvoice validates the monetary fields; when line items are present
// the invoice total is their sum.
func normalizeInvoice(inv *domain.Invoice) error {
	if len(inv.Items) > 0 {
		var total float64
		for _, item := range inv.Items {
			if err := domain.ValidateAmount(item.Amount); err != nil {
				return err
			}
			total += item.Amount
		}
		inv.Amount = total
	}
	return domain.ValidateAmount(inv.Amount)
}

func (s *InvoiceService) Create(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	if err := normalizeInvoice(&inv); err != nil {
		return domain.Invoice{}, err
	}
	inv.ID = idx.New().String()
	if inv.Status == "" {
		inv.Status = domain.InvoiceDraft
	}
	if err := s.Store.Invoices().Create(ctx, inv); err != nil {
		return domain.Invoice{}, err
	}
	return s.Store.Invoices().GetByID(ctx, inv.BusinessID, inv.ID)
}

func (s *InvoiceService) Get(ctx context.Context, businessID, id string) (domain.Invoice, error) {
	return s.Store.Invoices().GetByID(ctx, businessID, id)
}

func (s *InvoiceService) List(ctx context.Context, businessID string) ([]domain.Invoice, error) {
	return s.Store.Invoices().ListByBusiness(ctx, businessID)
}

func (s *InvoiceService) Update(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	if err := normalizeInvoice(&inv); err != nil {
		return domain.Invoice{}, err
	}
	if err := s.Store.Invoices().Update(ctx, inv); err != nil {
		return domain.Invoice{}, err
	}
	return s.Store.Invoices().GetByID(ctx, inv.BusinessID, inv.ID)
}

func (s *InvoiceService) Delete(ctx context.Context, businessID, id string) error {
	return s.Store.Invoices().Delete(ctx, businessID, id)
}

type ClientService struct {
	Store store.Store
}

func (s *ClientService) Create(ctx context.Context, c domain.Client) (domain.Client, error) {
	c.ID = idx.New().String()
	if c.Email != "" {
		c.Email = domain.NormalizeEmail(c.Email)
	}
	if err := s.Store.Clients().Create(ctx, c); err != nil {
		return domain.Client{}, err
	}
	return s.Store.Clients().GetByID(ctx, c.BusinessID, c.ID)
}

func (s *ClientService) Get(ctx context.Context, businessID, id string) (domain.Client, error) {
	return s.Store.Clients().GetByID(ctx, businessID, id)
}

func (s *ClientService) List(ctx context.Context, businessID string) ([]domain.Client, error) {
	return s.Store.Clients().ListByBusiness(ctx, businessID)
}

func (s *ClientService) Update(ctx context.Context, c domain.Client) (domain.Client, error) {
	if err := s.Store.Clients().Update(ctx, c); err != nil {
		return domain.Client{}, err
	}
	return s.Store.Clients().GetByID(ctx, c.BusinessID, c.ID)
}

func (s *ClientService) Delete(ctx context.Context, businessID, id string) error {
	return s.Store.Clients().Delete(ctx, businessID, id)
}

type ExpenseService struct {
	Store store.Store
}

func (s *ExpenseService) Create(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	if err := domain.ValidateAmount(e.Amount); err != nil {
		return domain.Expense{}, err
	}
	e.ID = idx.New().String()
	if err := s.Store.Expenses().Create(ctx, e); err != nil {
		return domain.Expense{}, err
	}
	return s.Store.Expenses().GetByID(ctx, e.BusinessID, e.ID)
}

func (s *ExpenseService) Get(ctx context.Context, businessID, id string) (domain.Expense, error) {
	return s.Store.Expenses().GetByID(ctx, businessID, id)
}

func (s *ExpenseService) List(ctx context.Context, businessID string) ([]domain.Expense, error) {
	return s.Store.Expenses().ListByBusiness(ctx, businessID)
}

func (s *ExpenseService) Update(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	if err := domain.ValidateAmount(e.Amount); err != nil {
		return domain.Expense{}, err
	}
	if err := s.Store.Expenses().Update(ctx, e); err != nil {
		return domain.Expense{}, err
	}
	return s.Store.Expenses().GetByID(ctx, e.BusinessID, e.ID)
}

func (s *ExpenseService) Delete(ctx context.Context, businessID, id string) error {
	return s.Store.Expenses().Delete(ctx, businessID, id)
}
