package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingEvent is returned when a frame has no event name
var ErrMissingEvent = errors.New("envelope has no event name")

// Envelope is one named event on the wire
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a frame for the event. A nil payload produces a frame with no data.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		switch p := payload.(type) {
		case json.RawMessage:
			env.Data = p
		default:
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("encode %s payload: %w", event, err)
			}
			env.Data = data
		}
	}
	return json.Marshal(env)
}

// Decode parses a frame
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}

// DecodeData unmarshals the envelope data into v. Missing data leaves v untouched.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", e.Event, err)
	}
	return nil
}
