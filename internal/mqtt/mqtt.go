// Package mqtt drives a network pump relay (e.g. a smart plug) over MQTT.
// It carries actuation commands only; readings are never published.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/soil-sensor/internal/logic"
)

// DefaultTopic is the relay command topic.
const DefaultTopic = "garden/soil-sensor/pump/set"

// Relay states as written in payloads.
const (
	StateOn  = "ON"
	StateOff = "OFF"
)

// Payload represents the MQTT message payload structure.
type Payload struct {
	Pump PumpPayload `json:"pump"`
}

// PumpPayload contains the pump command details.
type PumpPayload struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	State     string `json:"state"`
}

// FormatPayload creates the JSON payload asking the relay for the given state.
func FormatPayload(action logic.PumpAction, on bool, t time.Time) ([]byte, error) {
	state := StateOff
	if on {
		state = StateOn
	}
	payload := Payload{
		Pump: PumpPayload{
			Timestamp: t.UTC().Format(time.RFC3339),
			Action:    string(action),
			State:     state,
		},
	}
	return json.Marshal(payload)
}

// FormatWillPayload creates the Last Will payload: the broker delivers it if
// the controller disappears, so the relay switches the pump off.
func FormatWillPayload(t time.Time) ([]byte, error) {
	return FormatPayload(logic.PumpDeactivate, false, t)
}
