package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Frequency selects between immediate dispatch and daily digest accumulation
// for the email channel.
type Frequency string

// Recognized frequencies. Any other value is treated as immediate by the
// router so a misconfigured user never silently loses a change.
const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDaily     Frequency = "daily"
)

// Default values applied when a user record lacks a settings field.
const (
	DefaultFrequency    = FrequencyImmediate
	DefaultDeliveryTime = "18:00"
	DefaultPushPriority = "normal"
)

// RawNotificationSettings is the wire form of a user's notification
// configuration as embedded in the user record. Pointer fields distinguish
// "explicitly false" from "absent"; absent fields take the documented
// defaults during resolution.
type RawNotificationSettings struct {
	Enabled *bool `json:"enabled,omitempty"`
	Email   struct {
		Enabled      *bool  `json:"enabled,omitempty"`
		Frequency    string `json:"frequency,omitempty"`
		DeliveryTime string `json:"deliveryTime,omitempty"`
	} `json:"email"`
	Pushover struct {
		Enabled  *bool  `json:"enabled,omitempty"`
		Priority string `json:"priority,omitempty"`
	} `json:"pushover"`
}

// EmailSettings is the resolved email channel configuration.
type EmailSettings struct {
	Enabled      bool
	Frequency    Frequency
	DeliveryTime string // HH:MM, user-local
}

// PushoverSettings is the resolved push channel configuration.
type PushoverSettings struct {
	Enabled  bool
	Priority string
}

// NotificationSettings is a user's fully resolved notification configuration.
// Every field holds a concrete value; no consumer needs to reason about
// missing keys.
type NotificationSettings struct {
	Enabled  bool
	Email    EmailSettings
	Pushover PushoverSettings
}

// ResolveNotificationSettings merges a raw user record against the default
// table in one place:
//
//	enabled            true
//	email.enabled      true
//	email.frequency    immediate
//	email.deliveryTime 18:00
//	pushover.enabled   true
//	pushover.priority  normal
//
// A nil raw value resolves to pure defaults, which is also the fallback when
// the user record itself is unreadable.
func ResolveNotificationSettings(raw *RawNotificationSettings) NotificationSettings {
	resolved := NotificationSettings{
		Enabled: true,
		Email: EmailSettings{
			Enabled:      true,
			Frequency:    DefaultFrequency,
			DeliveryTime: DefaultDeliveryTime,
		},
		Pushover: PushoverSettings{
			Enabled:  true,
			Priority: DefaultPushPriority,
		},
	}
	if raw == nil {
		return resolved
	}

	if raw.Enabled != nil {
		resolved.Enabled = *raw.Enabled
	}
	if raw.Email.Enabled != nil {
		resolved.Email.Enabled = *raw.Email.Enabled
	}
	if f := strings.TrimSpace(raw.Email.Frequency); f != "" {
		// Kept verbatim: the router owns the unknown-value fallback.
		resolved.Email.Frequency = Frequency(f)
	}
	if t := strings.TrimSpace(raw.Email.DeliveryTime); t != "" {
		resolved.Email.DeliveryTime = t
	}
	if raw.Pushover.Enabled != nil {
		resolved.Pushover.Enabled = *raw.Pushover.Enabled
	}
	if p := strings.TrimSpace(raw.Pushover.Priority); p != "" {
		resolved.Pushover.Priority = p
	}
	return resolved
}

// ParseDeliveryTime parses an HH:MM delivery time into hour and minute.
func ParseDeliveryTime(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid delivery time format: %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parsing hour from delivery time %q: %w", s, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parsing minute from delivery time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("delivery time out of range: %02d:%02d", hour, minute)
	}
	return hour, minute, nil
}
