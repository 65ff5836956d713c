// Package mail delivers the transactional email the platform sends: invite
// links and registration-approval notices. Delivery is best effort; callers
// log failures and carry on.
package mail

import (
	"context"
	"fmt"
)

// Mailer sends a single plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// InviteEmail renders the invitation message carrying the accept link.
func InviteEmail(frontendBaseURL, businessName, token string) (subject, body string) {
	subject = fmt.Sprintf("You've been invited to join %s", businessName)
	body = fmt.Sprintf(
		"You have been invited to join %s.\n\n"+
			"Accept the invitation within 3 days using the link below:\n\n"+
			"%s/auth/accept-invite?token=%s\n\n"+
			"If you weren't expecting this invitation you can ignore this email.\n",
		businessName, frontendBaseURL, token,
	)
	return subject, body
}

// ApprovalEmail renders the registration-approval notice with the temporary
// password. The recipient must change it on first login.
func ApprovalEmail(frontendBaseURL, businessName, tempPassword string) (subject, body string) {
	subject = "Your registration has been approved"
	body = fmt.Sprintf(
		"Your registration for %s has been approved.\n\n"+
			"Sign in at %s/auth/login with this temporary password:\n\n"+
			"    %s\n\n"+
			"You will be asked to choose a new password on first login.\n",
		businessName, frontendBaseURL, tempPassword,
	)
	return subject, body
}
