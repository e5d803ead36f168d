package voice

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestSessionHappyPath(t *testing.T) {
	s := NewSession(zap.NewNop())
	if s.State() != StateIdle {
		t.Fatalf("initial state = %v", s.State())
	}
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !s.State().Listening() {
		t.Error("not listening while requesting")
	}
	if err := s.ProviderOpen(); err != nil {
		t.Fatalf("ProviderOpen: %v", err)
	}
	if err := s.ToolCall(); err != nil {
		t.Fatalf("ToolCall while open: %v", err)
	}
	s.Close()
	if s.State() != StateClosed {
		t.Fatalf("state after close = %v", s.State())
	}
	if s.State().Listening() {
		t.Error("still listening after close")
	}
}

func TestSessionInvalidTransitions(t *testing.T) {
	s := NewSession(nil)
	if err := s.ProviderOpen(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("ProviderOpen from idle = %v", err)
	}
	if err := s.ToolCall(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("ToolCall from idle = %v", err)
	}
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Begin(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("double Begin = %v", err)
	}
	if err := s.ToolCall(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("ToolCall while requesting = %v", err)
	}
}

func TestCloseReachableFromEveryNonTerminalState(t *testing.T) {
	setups := map[string]func(*Session){
		"idle":       func(*Session) {},
		"requesting": func(s *Session) { _ = s.Begin() },
		"open":       func(s *Session) { _ = s.Begin(); _ = s.ProviderOpen() },
	}
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			s := NewSession(nil)
			setup(s)
			torn := false
			s.AddTeardown(func() { torn = true })
			s.Close()
			if s.State() != StateClosed {
				t.Errorf("state = %v", s.State())
			}
			if !torn {
				t.Error("teardown not run")
			}
		})
	}
}

func TestTeardownRunsLIFOExactlyOnce(t *testing.T) {
	s := NewSession(nil)
	_ = s.Begin()
	var order []string
	s.AddTeardown(func() { order = append(order, "capture") })
	s.AddTeardown(func() { order = append(order, "provider") })

	s.Close()
	s.Close() // second close is a no-op
	if len(order) != 2 {
		t.Fatalf("teardown ran %d times: %v", len(order), order)
	}
	if order[0] != "provider" || order[1] != "capture" {
		t.Errorf("teardown order = %v, want provider before capture", order)
	}
}

func TestLateTeardownRunsImmediately(t *testing.T) {
	// a provider dial that loses the race with cancellation registers its
	// handle after the session already terminated
	s := NewSession(nil)
	_ = s.Begin()
	s.Close()

	ran := false
	s.AddTeardown(func() { ran = true })
	if !ran {
		t.Error("hook added after terminal state did not run")
	}
}

func TestFailRecordsErrorAndTearsDown(t *testing.T) {
	s := NewSession(zap.NewNop())
	_ = s.Begin()
	_ = s.ProviderOpen()

	torn := false
	s.AddTeardown(func() { torn = true })

	cause := errors.New("provider read: connection reset")
	s.Fail(cause)
	if s.State() != StateErrored {
		t.Fatalf("state = %v", s.State())
	}
	if !errors.Is(s.Err(), cause) {
		t.Errorf("Err = %v", s.Err())
	}
	if !torn {
		t.Error("teardown not run on failure")
	}

	// no transitions out of errored
	s.Close()
	if s.State() != StateErrored {
		t.Errorf("Close escaped errored state: %v", s.State())
	}
	if err := s.ToolCall(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("ToolCall after error = %v", err)
	}
}

func TestStateChangeCallbackTracksListening(t *testing.T) {
	s := NewSession(nil)
	var states []State
	s.OnStateChange(func(st State) { states = append(states, st) })

	_ = s.Begin()
	_ = s.ProviderOpen()
	s.Close()

	want := []State{StateRequesting, StateOpen, StateClosed}
	if len(states) != len(want) {
		t.Fatalf("callback states = %v", states)
	}
	for i, st := range want {
		if states[i] != st {
			t.Errorf("states[%d] = %v, want %v", i, states[i], st)
		}
	}
}
