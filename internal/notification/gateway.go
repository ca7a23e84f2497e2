package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fieldops/visitwatch/internal/config"
	"github.com/fieldops/visitwatch/internal/diff"
)

// DispatchError reports a delivery failure on one channel.
type DispatchError struct {
	Channel string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch via %s failed: %v", e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Dispatch describes one delivery request for a user's ChangeSet.
type Dispatch struct {
	UserID      string
	ChangeSet   diff.ChangeSet
	Settings    config.NotificationSettings
	EmailTo     string // comma-separated recipients from the user record
	PushoverKey string

	// Digest marks an accumulated daily report; digests go to email only,
	// since email is the digest-capable channel.
	Digest bool
	// PushOnly restricts delivery to the push channel. Used when a daily
	// user's email accumulates but pushover still fires immediately.
	PushOnly bool
}

// ChannelResult records the outcome of one channel attempt.
type ChannelResult struct {
	Channel string
	Err     error
}

// Result is the per-channel outcome of a dispatch. A Result with no
// attempted channels is a success: every channel was disabled or had no
// recipient, and nothing was lost.
type Result struct {
	Subject   string
	Attempted []ChannelResult
}

// Err returns the combined channel failures, or nil when every attempted
// channel succeeded.
func (r Result) Err() error {
	var errs []error
	for _, cr := range r.Attempted {
		if cr.Err != nil {
			errs = append(errs, &DispatchError{Channel: cr.Channel, Err: cr.Err})
		}
	}
	return errors.Join(errs...)
}

// Gateway fans one ChangeSet out to the user's enabled channels. It owns
// rendering and channel eligibility; retry policy belongs to callers.
type Gateway struct {
	email  Provider
	push   Provider
	logger *slog.Logger
}

// NewGateway creates a Gateway. Either provider may be nil when the
// deployment does not configure that transport.
func NewGateway(email, push Provider, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{email: email, push: push, logger: logger}
}

// Send renders and delivers d. One channel's failure does not prevent the
// other channel's attempt; the Result carries each outcome separately.
func (g *Gateway) Send(ctx context.Context, d Dispatch) Result {
	subject := Subject(d.ChangeSet, d.Digest)
	result := Result{Subject: subject}

	if !d.Settings.Enabled {
		g.logger.Debug("notifications disabled, skipping dispatch", "user_id", d.UserID)
		return result
	}
	body := RenderText(d.ChangeSet)

	if g.emailEligible(d) {
		msg := Message{
			Subject: subject,
			Body:    body,
			To:      splitRecipients(d.EmailTo),
		}
		if html, err := buildEmailHTML(subject, body); err == nil {
			msg.HTMLBody = html
		}
		err := g.email.Send(ctx, msg)
		result.Attempted = append(result.Attempted, ChannelResult{Channel: g.email.Name(), Err: err})
		g.logOutcome(d.UserID, g.email.Name(), err)
	}

	if g.pushEligible(d) {
		err := g.push.Send(ctx, Message{
			Subject:     subject,
			Body:        body,
			PushoverKey: d.PushoverKey,
			Priority:    d.Settings.Pushover.Priority,
		})
		result.Attempted = append(result.Attempted, ChannelResult{Channel: g.push.Name(), Err: err})
		g.logOutcome(d.UserID, g.push.Name(), err)
	}

	return result
}

func (g *Gateway) emailEligible(d Dispatch) bool {
	if g.email == nil || d.PushOnly {
		return false
	}
	return d.Settings.Email.Enabled && strings.TrimSpace(d.EmailTo) != ""
}

func (g *Gateway) pushEligible(d Dispatch) bool {
	if g.push == nil || d.Digest {
		return false
	}
	return d.Settings.Pushover.Enabled && d.PushoverKey != ""
}

func (g *Gateway) logOutcome(userID, channel string, err error) {
	if err != nil {
		g.logger.Warn("notification dispatch failed",
			"user_id", userID, "channel", channel, "error", err)
		return
	}
	g.logger.Info("notification dispatched", "user_id", userID, "channel", channel)
}

// splitRecipients splits a comma-separated recipient list, dropping blanks.
func splitRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
