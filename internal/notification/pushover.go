package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/gregdel/pushover"
)

// PushoverProvider delivers notifications through the Pushover API. The
// application token is deployment-wide; each message carries its recipient
// key and priority from the user's settings.
type PushoverProvider struct {
	app *pushover.Pushover
}

// NewPushoverProvider creates a PushoverProvider for the given app token.
func NewPushoverProvider(token string) *PushoverProvider {
	return &PushoverProvider{app: pushover.New(token)}
}

// Name returns the channel identifier.
func (p *PushoverProvider) Name() string { return "pushover" }

// Send delivers msg to the recipient key carried on the message.
func (p *PushoverProvider) Send(_ context.Context, msg Message) error {
	if msg.PushoverKey == "" {
		return fmt.Errorf("no pushover recipient key for message %q", msg.Subject)
	}

	pm := &pushover.Message{
		Title:    msg.Subject,
		Message:  msg.Body,
		Priority: priorityFromName(msg.Priority),
	}
	if pm.Priority == pushover.PriorityEmergency {
		// Emergency messages must specify how often and how long Pushover
		// re-alerts until acknowledged.
		pm.Retry = 60 * time.Second
		pm.Expire = time.Hour
	}

	_, err := p.app.SendMessage(pm, pushover.NewRecipient(msg.PushoverKey))
	if err != nil {
		return fmt.Errorf("sending pushover message: %w", err)
	}
	return nil
}

// priorityFromName maps a settings priority name to a Pushover priority.
// Unknown names fall back to normal.
func priorityFromName(name string) int {
	switch name {
	case "lowest":
		return pushover.PriorityLowest
	case "low":
		return pushover.PriorityLow
	case "high":
		return pushover.PriorityHigh
	case "emergency":
		return pushover.PriorityEmergency
	default:
		return pushover.PriorityNormal
	}
}
