package events

import (
	"sync"

	"shadowbridge/core/types"
)

// Log is an append-only event stream. Consumers poll it by topic filter and
// sequence cursor; entries are never mutated or removed.
type Log struct {
	mu      sync.RWMutex
	entries []*types.Event
}

// NewLog creates an empty event log.
func NewLog() *Log {
	return &Log{}
}

// Emit implements the Emitter interface. Events that cannot render an
// attribute form are dropped rather than stored as opaque markers.
func (l *Log) Emit(evt Event) {
	if l == nil || evt == nil {
		return
	}
	rec, ok := evt.(Recorder)
	if !ok {
		return
	}
	entry := rec.Event()
	if entry == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Len returns the current number of log entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns entries at sequence >= since whose type matches the topic
// filter. An empty topic matches every entry.
func (l *Log) Entries(topic string, since int) []*types.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if since < 0 {
		since = 0
	}
	if since >= len(l.entries) {
		return nil
	}
	out := make([]*types.Event, 0, len(l.entries)-since)
	for _, entry := range l.entries[since:] {
		if topic != "" && entry.Type != topic {
			continue
		}
		out = append(out, entry)
	}
	return out
}
