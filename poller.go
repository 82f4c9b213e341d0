// Package engine's pluggable Backend abstraction.
//
// # Backend
//
// Each [Engine] drives exactly one [Backend]: a vtable over a platform's
// native readiness mechanism (epoll, kqueue, or IOCP). The scheduler loop
// calls Poll once per tick with a computed timeout; the backend is
// responsible for translating whatever it observes into enqueued work on
// the appropriate [WorkQueueClass], via the callbacks supplied to
// RegisterFD.
//
// # Platform support
//
//   - Linux: poller_linux.go (epoll), wakeup_linux.go (self-pipe).
//   - Darwin: poller_darwin.go (kqueue), wakeup_darwin.go (self-pipe).
//   - Windows: poller_windows.go (IOCP), wakeup_windows.go
//     (PostQueuedCompletionStatus).
package engine

// IOEvents is a bitset describing the readiness kinds a registered file
// descriptor may report.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// Backend is the pluggable OS-readiness vtable an [Engine] drives. Create
// and Free bracket the backend's lifetime; RegisterFD/ModifyFD/UnregisterFD
// manage interest sets; Poll blocks (bounded by timeoutMs) until readiness,
// a wake-up, or the timeout elapses, dispatching ready fds itself: it
// enqueues the onRead/onWrite callbacks given to RegisterFD onto the
// engine's work queues under their registered classes, and invokes
// onError directly.
type Backend interface {
	// Create prepares the backend to serve eng, sizing any internal
	// buffers to accommodate eventsCap simultaneously-ready events and
	// changesCap pending interest-set changes.
	Create(eng *Engine, changesCap, eventsCap int) error
	// Free releases all resources held by the backend. Safe to call
	// exactly once, after the engine goroutine has stopped using it.
	Free() error
	// Poll waits up to timeoutMs milliseconds (a negative value meaning
	// unbounded) for readiness, dispatching every ready fd's registered
	// callback before returning. Returns the number of fds dispatched.
	Poll(timeoutMs int) (int, error)
	// RegisterFD begins monitoring fd for the given event set. onRead and
	// onWrite are enqueued onto readClass/writeClass respectively when
	// their event fires; onError is invoked directly (never queued, so it
	// can tear down the fd's registration promptly) when EventError or
	// EventHangup fires. Any of the callbacks may be nil.
	RegisterFD(fd int, events IOEvents, readClass, writeClass WorkQueueClass, onRead, onWrite, onError Task) error
	// ModifyFD changes the event set being monitored for fd.
	ModifyFD(fd int, events IOEvents) error
	// UnregisterFD stops monitoring fd. A callback dispatched from a Poll
	// already in flight when UnregisterFD is called may still run once
	// after this returns; callers must coordinate fd closure accordingly.
	UnregisterFD(fd int) error
	// SignalSupport reports whether this backend can deliver OS signal
	// numbers natively. Every backend in this package returns false:
	// signal numbers always travel through the wake-up transport's
	// one-byte protocol (see wakeup.go). That transport is a self-pipe
	// registered through RegisterFD where one is available (Linux,
	// Darwin); on Windows, which has no usable self-pipe fd, it posts the
	// byte through the backend's native waker (PostQueuedCompletionStatus)
	// instead.
	SignalSupport() bool
}
