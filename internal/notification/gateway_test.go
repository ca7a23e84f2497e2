package notification_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/visitwatch/internal/config"
	"github.com/fieldops/visitwatch/internal/diff"
	"github.com/fieldops/visitwatch/internal/notification"
)

// --- stub provider ---

type stubProvider struct {
	name string
	err  error
	sent []notification.Message
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Send(_ context.Context, msg notification.Message) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

// --- helpers ---

func enabledSettings() config.NotificationSettings {
	return config.ResolveNotificationSettings(nil)
}

func oneChange() diff.ChangeSet {
	return diff.NewChangeSet([]diff.ChangeRecord{{
		Type:          diff.ChangeRemoved,
		Severity:      diff.SeverityCritical,
		JobID:         "W-100",
		StoreNumber:   "12",
		StoreName:     "Store 12",
		ScheduledDate: "2025-06-01",
	}})
}

// --- tests ---

func TestGateway_SendBothChannels(t *testing.T) {
	email := &stubProvider{name: "email"}
	push := &stubProvider{name: "pushover"}
	g := notification.NewGateway(email, push, nil)

	result := g.Send(context.Background(), notification.Dispatch{
		UserID:      "alice",
		ChangeSet:   oneChange(),
		Settings:    enabledSettings(),
		EmailTo:     "alice@example.com, ops@example.com",
		PushoverKey: "u-alice",
	})

	require.NoError(t, result.Err())
	require.Len(t, result.Attempted, 2)

	require.Len(t, email.sent, 1)
	assert.Equal(t, []string{"alice@example.com", "ops@example.com"}, email.sent[0].To)
	assert.Contains(t, email.sent[0].Subject, "Visit Removed")
	assert.NotEmpty(t, email.sent[0].HTMLBody)

	require.Len(t, push.sent, 1)
	assert.Equal(t, "u-alice", push.sent[0].PushoverKey)
	assert.Equal(t, "normal", push.sent[0].Priority)
}

func TestGateway_DisabledUserSkipsAllChannels(t *testing.T) {
	email := &stubProvider{name: "email"}
	push := &stubProvider{name: "pushover"}
	g := notification.NewGateway(email, push, nil)

	settings := enabledSettings()
	settings.Enabled = false

	result := g.Send(context.Background(), notification.Dispatch{
		UserID:      "alice",
		ChangeSet:   oneChange(),
		Settings:    settings,
		EmailTo:     "alice@example.com",
		PushoverKey: "u-alice",
	})

	assert.NoError(t, result.Err())
	assert.Empty(t, result.Attempted)
	assert.Empty(t, email.sent)
	assert.Empty(t, push.sent)
}

func TestGateway_DigestGoesToEmailOnly(t *testing.T) {
	email := &stubProvider{name: "email"}
	push := &stubProvider{name: "pushover"}
	g := notification.NewGateway(email, push, nil)

	result := g.Send(context.Background(), notification.Dispatch{
		UserID:      "alice",
		ChangeSet:   oneChange(),
		Settings:    enabledSettings(),
		EmailTo:     "alice@example.com",
		PushoverKey: "u-alice",
		Digest:      true,
	})

	require.NoError(t, result.Err())
	require.Len(t, result.Attempted, 1)
	assert.Equal(t, "email", result.Attempted[0].Channel)
	assert.Contains(t, email.sent[0].Subject, "Daily Schedule Digest")
	assert.Empty(t, push.sent)
}

func TestGateway_PushOnly(t *testing.T) {
	email := &stubProvider{name: "email"}
	push := &stubProvider{name: "pushover"}
	g := notification.NewGateway(email, push, nil)

	result := g.Send(context.Background(), notification.Dispatch{
		UserID:      "alice",
		ChangeSet:   oneChange(),
		Settings:    enabledSettings(),
		EmailTo:     "alice@example.com",
		PushoverKey: "u-alice",
		PushOnly:    true,
	})

	require.NoError(t, result.Err())
	require.Len(t, result.Attempted, 1)
	assert.Equal(t, "pushover", result.Attempted[0].Channel)
	assert.Empty(t, email.sent)
}

func TestGateway_OneChannelFailureDoesNotBlockOther(t *testing.T) {
	email := &stubProvider{name: "email", err: errors.New("smtp: connection refused")}
	push := &stubProvider{name: "pushover"}
	g := notification.NewGateway(email, push, nil)

	result := g.Send(context.Background(), notification.Dispatch{
		UserID:      "alice",
		ChangeSet:   oneChange(),
		Settings:    enabledSettings(),
		EmailTo:     "alice@example.com",
		PushoverKey: "u-alice",
	})

	require.Error(t, result.Err())
	var dispatchErr *notification.DispatchError
	require.ErrorAs(t, result.Err(), &dispatchErr)
	assert.Equal(t, "email", dispatchErr.Channel)

	// Pushover was still attempted and succeeded.
	require.Len(t, push.sent, 1)
}

func TestGateway_NoRecipientsSkipsEmail(t *testing.T) {
	email := &stubProvider{name: "email"}
	g := notification.NewGateway(email, nil, nil)

	result := g.Send(context.Background(), notification.Dispatch{
		UserID:    "alice",
		ChangeSet: oneChange(),
		Settings:  enabledSettings(),
		EmailTo:   "   ",
	})

	assert.NoError(t, result.Err())
	assert.Empty(t, result.Attempted)
}
