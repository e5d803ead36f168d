// Package voice runs the live voice-command session: audio relayed to the
// provider, tool calls executed and acknowledged, all driven by an explicit
// session state machine so cancellation is reachable from every non-terminal
// state and teardown can never leave a dangling handle.
package voice

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// State is the lifecycle state of a voice session.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateOpen
	StateClosing
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

// Listening reports whether the listening indicator should be on.
func (s State) Listening() bool {
	return s == StateRequesting || s == StateOpen
}

// ErrBadTransition is returned for an event not valid in the current state.
var ErrBadTransition = errors.New("invalid session transition")

// Session is the voice-command state machine. Transitions: capture-start
// (Idle to Requesting), provider-open (Requesting to Open), tool-call (Open
// only), close-requested (any non-terminal to Closing then Closed), error
// (any non-terminal to Errored). Teardown hooks run exactly once, on entry
// to any terminal state; a hook added after the session already terminated
// runs immediately, so a connect that loses the race with cancellation
// still releases its handle.
type Session struct {
	mu       sync.Mutex
	state    State
	logger   *zap.Logger
	onState  func(State)
	teardown []func()
	torn     bool
	lastErr  error
}

// NewSession creates a session in the Idle state.
func NewSession(logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{state: StateIdle, logger: logger}
}

// OnStateChange registers the listening-indicator callback. It is invoked
// outside the session lock.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session to Errored, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// AddTeardown registers a resource release hook. If the session has already
// reached a terminal state the hook runs immediately.
func (s *Session) AddTeardown(fn func()) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		fn()
		return
	}
	s.teardown = append(s.teardown, fn)
	s.mu.Unlock()
}

// Begin handles capture-start: Idle to Requesting.
func (s *Session) Begin() error {
	return s.transition(StateIdle, StateRequesting)
}

// ProviderOpen handles the provider session opening: Requesting to Open.
func (s *Session) ProviderOpen() error {
	return s.transition(StateRequesting, StateOpen)
}

// ToolCall validates that a tool-call event is acceptable; only an Open
// session handles tool calls.
func (s *Session) ToolCall() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrBadTransition
	}
	return nil
}

// Close handles close-requested from any non-terminal state: run teardown,
// end in Closed. Closing an already-terminal session is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateClosing)
	hooks := s.takeTeardownLocked()
	s.setStateLocked(StateClosed)
	notify := s.onState
	s.mu.Unlock()

	runHooks(hooks)
	if notify != nil {
		notify(StateClosed)
	}
}

// Fail handles an error or unexpected remote close from any non-terminal
// state: teardown, end in Errored. No automatic reconnect.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.lastErr = err
	s.setStateLocked(StateErrored)
	hooks := s.takeTeardownLocked()
	notify := s.onState
	s.mu.Unlock()

	s.logger.Warn("voice session errored", zap.Error(err))
	runHooks(hooks)
	if notify != nil {
		notify(StateErrored)
	}
}

func (s *Session) transition(from, to State) error {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return ErrBadTransition
	}
	s.setStateLocked(to)
	notify := s.onState
	s.mu.Unlock()
	if notify != nil {
		notify(to)
	}
	return nil
}

func (s *Session) setStateLocked(to State) {
	s.logger.Debug("voice session transition",
		zap.String("from", s.state.String()),
		zap.String("to", to.String()),
	)
	s.state = to
}

func (s *Session) takeTeardownLocked() []func() {
	s.torn = true
	hooks := s.teardown
	s.teardown = nil
	return hooks
}

func runHooks(hooks []func()) {
	// reverse order: release in LIFO, provider handle before capture
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}
