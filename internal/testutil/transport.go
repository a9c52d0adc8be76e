package testutil

import (
	"sync"

	"github.com/mcoot/tdlobby/internal/model"
)

// Broadcast is the recipient name used for EmitToAll calls
const Broadcast model.ConnectionID = "*"

// Emission is one event handed to a RecordingTransport
type Emission struct {
	To      model.ConnectionID // Broadcast for EmitToAll
	Event   string
	Payload any
}

// RecordingTransport captures emitted events instead of delivering them
type RecordingTransport struct {
	mu        sync.Mutex
	emissions []Emission
}

// NewRecordingTransport creates an empty RecordingTransport
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{}
}

// Emit records an event for one connection
func (t *RecordingTransport) Emit(conn model.ConnectionID, event string, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emissions = append(t.emissions, Emission{To: conn, Event: event, Payload: payload})
}

// EmitToAll records an event for everyone
func (t *RecordingTransport) EmitToAll(event string, payload any) {
	t.Emit(Broadcast, event, payload)
}

// Publish records a listener event, so the transport can double as a broadcast.Listener
func (t *RecordingTransport) Publish(event string, payload any) {
	t.EmitToAll(event, payload)
}

// All returns every recorded emission in order
func (t *RecordingTransport) All() []Emission {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]Emission, len(t.emissions))
	copy(result, t.emissions)
	return result
}

// To returns the emissions addressed to conn, in order
func (t *RecordingTransport) To(conn model.ConnectionID) []Emission {
	var result []Emission
	for _, e := range t.All() {
		if e.To == conn {
			result = append(result, e)
		}
	}
	return result
}

// Events returns the event names addressed to conn, in order
func (t *RecordingTransport) Events(conn model.ConnectionID) []string {
	var names []string
	for _, e := range t.To(conn) {
		names = append(names, e.Event)
	}
	return names
}

// Count returns how many emissions carry the event name
func (t *RecordingTransport) Count(event string) int {
	n := 0
	for _, e := range t.All() {
		if e.Event == event {
			n++
		}
	}
	return n
}

// Reset forgets every recorded emission
func (t *RecordingTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emissions = nil
}
