package domain

import "time"

// Business is the tenant: the isolation boundary for invoices, expenses,
// CRM clients and team members. Exactly one account owns it.
type Business struct {
	ID              string
	OwnerAccountID  string
	Name            string
	Address         string
	TaxID           string
	Currency        string // ISO 4217, e.g. "AUD"
	TaxRate         float64
	ProfileComplete bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RecomputeProfileComplete flips the completeness flag once the fields
// required for issuing compliant invoices are present.
func (b *Business) RecomputeProfileComplete() {
	b.ProfileComplete = b.TaxID != "" && b.Address != ""
}
