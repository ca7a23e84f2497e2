// Package notification delivers change reports to users over the configured
// channels (email via SMTP, push via Pushover) and renders ChangeSets into
// human-readable reports.
package notification

import "context"

// Message is the content to be delivered by a Provider.
type Message struct {
	Subject  string
	Body     string // plain text
	HTMLBody string // optional rich alternative, email only
	To       []string
	// Pushover routing. Ignored by the email provider.
	PushoverKey string
	Priority    string
}

// Provider is the interface for notification delivery backends.
type Provider interface {
	// Name returns the channel identifier (e.g. "email", "pushover").
	Name() string
	// Send delivers the message using the provider's transport.
	Send(ctx context.Context, msg Message) error
}
