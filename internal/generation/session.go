package generation

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
)

// State is the lifecycle position of a Session.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// ErrSessionClosed is returned for any event offered after a terminal one.
var ErrSessionClosed = errors.New("generation: session already finished")

// Session accumulates streamed text and forwards events to emit, enforcing
// idle -> connecting -> streaming -> {complete | error}. Exactly one terminal
// event is ever emitted and no chunk follows it.
type Session struct {
	mu    sync.Mutex
	state State
	text  strings.Builder
	emit  func(Event) error
}

// NewSession returns an idle session that forwards events to emit.
func NewSession(emit func(Event) error) *Session {
	return &Session{state: StateIdle, emit: emit}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns everything accumulated so far.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Connect marks the request as dispatched.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrSessionClosed
	}
	s.state = StateConnecting
	return nil
}

// Append adds a delta and emits a chunk carrying the whole accumulated text.
// The first delta moves the session to streaming.
func (s *Session) Append(delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrSessionClosed
	}
	s.state = StateStreaming
	s.text.WriteString(delta)
	return s.emit(Event{Type: EventChunk, Content: s.text.String()})
}

// Complete emits the terminal complete event. id is nil when the itinerary
// was not persisted.
func (s *Session) Complete(it domain.Itinerary, id *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrSessionClosed
	}
	s.state = StateComplete
	return s.emit(Event{Type: EventComplete, Data: &Payload{Title: it.Title, Days: it.Days}, ID: id})
}

// Fail emits the terminal error event.
func (s *Session) Fail(msg string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrSessionClosed
	}
	s.state = StateError
	ev := Event{Type: EventError, Error: msg}
	if cause != nil {
		ev.Details = cause.Error()
	}
	return s.emit(ev)
}

func (s *Session) terminal() bool {
	return s.state == StateComplete || s.state == StateError
}
