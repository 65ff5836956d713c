package domain

import "time"

// RegistrationStatus tracks a self-service signup awaiting platform review.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// RegistrationRequest is an application to open a business on the platform.
// Approval creates the owner Account (with a generated temporary password and
// a forced password change) and the Business in a single transaction.
type RegistrationRequest struct {
	ID           string
	Email        string // normalized lower-case
	Name         string
	BusinessName string
	Status       RegistrationStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
