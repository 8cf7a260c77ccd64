package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from wailsRuntime
// ─────────────────────────────────────────────────────────────

// Events emitted to the frontend.
const (
	EventDesignSpaceChanged  = "designspace:changed"
	EventGenerationsLoading  = "generations:loading"
	EventGenerationsUpdated  = "generations:updated"
	EventFeedbackUpdated     = "feedback:updated"
	EventStatusMessage       = "status:message"
	EventViewerFilesChanged  = "viewer:files-changed"
	EventHistoryAppended     = "history:appended"
	EventUndoChanged         = "undo:changed"
	EventApprovalRequested   = "mcp:approval-requested"
	EventSessionExternalEdit = "session:external-change"
)

// EventEmitter is an interface for emitting events to the frontend.
// The App struct implements this by delegating to wailsRuntime.EventsEmit.
// Services receive this interface instead of a wailsRuntime context,
// which makes them independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// StatusMessage is the payload of a status:message event. The frontend
// shows it briefly and then hides it.
type StatusMessage struct {
	Level string `json:"level"` // "info", "warning" or "error"
	Text  string `json:"text"`
}

func emitStatus(ctx context.Context, e EventEmitter, level, text string) {
	if e == nil {
		return
	}
	e.Emit(ctx, EventStatusMessage, StatusMessage{Level: level, Text: text})
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded emissions of one event, in order.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
