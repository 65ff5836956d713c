package domain

import (
	"errors"
	"math"
	"time"
)

// ErrNonFiniteAmount rejects NaN/Inf monetary values before they reach
// storage.
var ErrNonFiniteAmount = errors.New("domain: amount must be a finite, non-negative number")

// ValidateAmount checks a monetary field is finite and non-negative.
func ValidateAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return ErrNonFiniteAmount
	}
	return nil
}

// InvoiceStatus is the billing lifecycle of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

// InvoiceItem is one billed line on an invoice.
type InvoiceItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Invoice is a tenant-scoped billing document. Rendering and payment
// collection happen elsewhere; this is the persisted record only. Amount is
// the invoice total; when line items are present it is their sum.
type Invoice struct {
	ID         string        `json:"id"`
	BusinessID string        `json:"business_id"`
	ClientID   string        `json:"client_id,omitempty"`
	Number     string        `json:"number"`
	Status     InvoiceStatus `json:"status"`
	Items      []InvoiceItem `json:"items,omitempty"`
	Amount     float64       `json:"amount"`
	Currency   string        `json:"currency"`
	IssuedOn   time.Time     `json:"issued_on"`
	DueOn      time.Time     `json:"due_on"`
	Notes      string        `json:"notes,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Client is a CRM contact belonging to one business.
type Client struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Expense is a tenant-scoped expense record.
type Expense struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Category   string    `json:"category"`
	Amount     float64   `json:"amount"`
	IncurredOn time.Time `json:"incurred_on"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
