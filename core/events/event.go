package events

import "shadowbridge/core/types"

// Event represents a structured state change emitted by the settlement core.
type Event interface {
	EventType() string
}

// Recorder is implemented by events that can render themselves into the
// attribute form persisted in the log and served over RPC.
type Recorder interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (log, metrics, RPC).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines default to it so event wiring stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Multi fans a single emission out to several emitters in order.
type Multi []Emitter

// Emit implements the Emitter interface.
func (m Multi) Emit(evt Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(evt)
		}
	}
}
