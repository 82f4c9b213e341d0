package engine

import (
	"sync/atomic"
)

// EngineState represents the current lifecycle state of an [Engine].
//
//	StateAwake (0)       → StateRunning (3)       [Start()]
//	StateAwake (0)       → StateTerminated (1)    [Free() before Start()]
//	StateRunning (3)     → StateSleeping (2)      [scheduler poll, via CAS]
//	StateRunning (3)     → StateTerminating (4)   [Free()]
//	StateSleeping (2)    → StateRunning (3)       [poll wake, via CAS]
//	StateSleeping (2)    → StateTerminating (4)   [Free()]
//	StateTerminating (4) → StateTerminated (1)    [shutdown drain complete]
//	StateTerminated (1)  → (terminal)
//
// Transient states (Running, Sleeping) are entered via CAS
// ([fastState.TryTransition]), as are Terminating and the Awake →
// Terminated step of Free before Start; Terminated is irreversible, and at
// the end of the shutdown drain it is set with [fastState.Store].
type EngineState uint64

const (
	// StateAwake indicates the engine has been created but Start has not
	// been called yet.
	StateAwake EngineState = 0
	// StateTerminated indicates the engine has fully shut down: queues
	// drained, backend and wake-up transport closed.
	StateTerminated EngineState = 1
	// StateSleeping indicates the engine thread is blocked in the
	// backend's poll, waiting for readiness, a timer, or a wake-up.
	StateSleeping EngineState = 2
	// StateRunning indicates the engine thread is actively draining work
	// queues or about to poll.
	StateRunning EngineState = 3
	// StateTerminating indicates Free has been called but the drain of
	// in-flight work has not completed.
	StateTerminating EngineState = 4
)

// String returns a human-readable representation of the state.
func (s EngineState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine guarding Engine lifecycle
// transitions with pure atomic CAS, avoiding a mutex on the hot
// running/sleeping toggle performed once per scheduler tick.
type fastState struct {
	v atomic.Uint64
	_ [sizeOfCacheLine - sizeOfAtomicUint64]byte // cache line padding, avoids false sharing with neighboring fields
}

// newFastState creates a new state machine in the Awake state.
func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

// Load returns the current state atomically.
func (s *fastState) Load() EngineState {
	return EngineState(s.v.Load())
}

// Store unconditionally stores a new state. Only valid for the
// irreversible StateTerminated transition; transient states must use
// TryTransition so a concurrent transition is never silently clobbered.
func (s *fastState) Store(state EngineState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to
// another, returning whether it succeeded.
func (s *fastState) TryTransition(from, to EngineState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true if the engine has fully shut down.
func (s *fastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

// CanAcceptWork returns true if the engine can still accept new work
// (mailbox posts, internal submissions).
func (s *fastState) CanAcceptWork() bool {
	switch s.Load() {
	case StateAwake, StateRunning, StateSleeping, StateTerminating:
		return true
	default:
		return false
	}
}
