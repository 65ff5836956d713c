package mail

import (
	"context"

	"github.com/tallyworks/tally/pkg/slogx"
)

// LogMailer logs messages instead of sending them. Used in development and
// whenever SMTP is not configured, so invite and approval flows still work
// end to end locally.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	slogx.FromContext(ctx).Info("mail not sent (smtp unconfigured)",
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}
