// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/filament-dryer/internal/logic"
)

// DefaultBaseTopic is the topic prefix for every dryer message.
const DefaultBaseTopic = "appliance/dryer"

// Topics are the three MQTT topics the dryer publishes on.
type Topics struct {
	Events    string // lifecycle events
	Telemetry string // per-second PROGRESS events
	System    string // STARTUP/SHUTDOWN/HEARTBEAT/RECONNECTED and the LWT
}

// NewTopics derives the topic set from a base prefix.
func NewTopics(base string) Topics {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		base = DefaultBaseTopic
	}
	return Topics{
		Events:    base + "/events",
		Telemetry: base + "/telemetry",
		System:    base + "/system",
	}
}

// For returns the topic and QoS a dryer event is published with.
// Progress is high-rate telemetry, so it is sent at-most-once.
func (t Topics) For(event logic.Event) (string, byte) {
	if event.Type == logic.EventProgress {
		return t.Telemetry, 0
	}
	return t.Events, 1
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a dryer event tagged with the drying cycle it belongs to.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event, cycleID string) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Dryer DryerPayload `json:"dryer"`
}

// DryerPayload contains the dryer event details.
type DryerPayload struct {
	Timestamp      string `json:"timestamp"`
	Event          string `json:"event"`
	CycleID        string `json:"cycle_id,omitempty"`
	Mode           string `json:"mode"`
	Adjust         string `json:"adjust"`
	TargetHours    int    `json:"target_hours"`
	TargetC        int    `json:"target_c"`
	CurrentC       int    `json:"current_c"`
	Elapsed        string `json:"elapsed"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Heater         bool   `json:"heater"`
}

// FormatPayload creates the JSON payload for a dryer event.
func FormatPayload(event logic.Event, cycleID string) ([]byte, error) {
	payload := Payload{
		Dryer: DryerPayload{
			Timestamp:      event.Timestamp.UTC().Format(time.RFC3339),
			Event:          string(event.Type),
			CycleID:        cycleID,
			Mode:           string(event.Mode),
			Adjust:         string(event.Adjust),
			TargetHours:    event.Config.ActivityTimeHours,
			TargetC:        event.Config.WorkTemperatureC,
			CurrentC:       event.Celsius,
			Elapsed:        event.Elapsed.String(),
			ElapsedSeconds: int64(event.Elapsed.Duration().Seconds()),
			Heater:         event.Heater,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
