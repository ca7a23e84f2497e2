package eventbus

import "time"

// Event types published by the detection and dispatch pipeline.
const (
	EventChangesDetected   = "changes.detected"
	EventDetectionFailed   = "detection.failed"
	EventChangeSetRouted   = "changeset.routed"
	EventDispatchSucceeded = "dispatch.succeeded"
	EventDispatchFailed    = "dispatch.failed"
	EventDigestFlushed     = "digest.flushed"
)

// Event represents an application event published to the bus.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Listener is a function that handles an event.
type Listener func(Event)
