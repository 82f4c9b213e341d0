//go:build windows

package engine

import (
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/windows"
)

// iocpMaxFDLimit bounds dynamic growth of the handle table.
const iocpMaxFDLimit = 100000000

type iocpFDInfo struct {
	onRead, onWrite, onError Task
	readClass, writeClass    WorkQueueClass
	events                   IOEvents
	active                   bool
}

// IOCPBackend implements [Backend] on Windows using an I/O completion
// port. Unlike epoll/kqueue, IOCP does not report readiness per se; a
// production backend posts overlapped reads/writes and is notified on
// completion. This backend tracks registered handles and their desired
// event set, and additionally serves as the engine's native wake-up
// mechanism via WakeNative/PostQueuedCompletionStatus, since Windows has
// no self-pipe equivalent.
type IOCPBackend struct {
	eng    *Engine
	iocp   windows.Handle
	fds    []iocpFDInfo
	fdMu   sync.RWMutex
	closed atomic.Bool
}

// NewIOCPBackend constructs an uninitialized IOCP backend; Create performs
// the actual CreateIoCompletionPort call.
func NewIOCPBackend() *IOCPBackend { return &IOCPBackend{} }

// newDefaultBackend returns the platform's default Backend.
func newDefaultBackend() Backend { return NewIOCPBackend() }

func (p *IOCPBackend) Create(eng *Engine, changesCap, eventsCap int) error {
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return err
	}
	p.eng = eng
	p.iocp = iocp
	p.fds = make([]iocpFDInfo, 1024)
	return nil
}

func (p *IOCPBackend) Free() error {
	p.closed.Store(true)
	if p.iocp != 0 {
		return windows.CloseHandle(p.iocp)
	}
	return nil
}

func (p *IOCPBackend) SignalSupport() bool { return false }

func (p *IOCPBackend) RegisterFD(fd int, events IOEvents, readClass, writeClass WorkQueueClass, onRead, onWrite, onError Task) error {
	if p.closed.Load() {
		return ErrBackendClosed
	}
	if fd < 0 || fd >= iocpMaxFDLimit {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if fd >= len(p.fds) {
		newSize := fd*2 + 1
		if newSize > iocpMaxFDLimit {
			newSize = iocpMaxFDLimit + 1
		}
		grown := make([]iocpFDInfo, newSize)
		copy(grown, p.fds)
		p.fds = grown
	}
	if p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = iocpFDInfo{
		onRead: onRead, onWrite: onWrite, onError: onError,
		readClass: readClass, writeClass: writeClass,
		events: events, active: true,
	}
	p.fdMu.Unlock()

	handle := windows.Handle(fd)
	_, err := windows.CreateIoCompletionPort(handle, p.iocp, uintptr(fd), 0)
	if err != nil {
		p.fdMu.Lock()
		p.fds[fd] = iocpFDInfo{}
		p.fdMu.Unlock()
		return err
	}
	return nil
}

func (p *IOCPBackend) UnregisterFD(fd int) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	p.fds[fd] = iocpFDInfo{}
	p.fdMu.Unlock()
	// Closing the underlying handle removes its IOCP association; there is
	// no explicit detach call.
	return nil
}

func (p *IOCPBackend) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	p.fds[fd].events = events
	p.fdMu.Unlock()
	return nil
}

// Poll blocks on GetQueuedCompletionStatus. A completion with a nil
// overlapped pointer is a wake-up posted via WakeNative: its completion
// key carries the one-byte wakeup-transport payload (0 = drain mailbox,
// nonzero = signal number). Any other completion is dispatched to the
// handle registered under the given key.
func (p *IOCPBackend) Poll(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrBackendClosed
	}

	var timeout *uint32
	if timeoutMs >= 0 {
		t := uint32(timeoutMs)
		timeout = &t
	}

	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped

	err := windows.GetQueuedCompletionStatus(p.iocp, &bytes, &key, &overlapped, timeout)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			if errno == windows.WAIT_TIMEOUT {
				return 0, nil
			}
			if errno == windows.ERROR_ABANDONED_WAIT_0 || errno == windows.ERROR_INVALID_HANDLE {
				return 0, ErrBackendClosed
			}
		}
		return 0, err
	}

	if overlapped == nil {
		p.eng.wakeup.deliverNative(byte(key))
		return 0, nil
	}

	fd := int(key)
	p.fdMu.RLock()
	var info iocpFDInfo
	if fd >= 0 && fd < len(p.fds) {
		info = p.fds[fd]
	}
	p.fdMu.RUnlock()
	if info.active && info.onRead != nil {
		p.eng.queues.enqueue(info.readClass, info.onRead)
	}
	return 1, nil
}

// WakeNative posts a zero-byte completion packet carrying payload as the
// completion key, interrupting a blocked Poll without requiring a self-pipe
// file descriptor.
func (p *IOCPBackend) WakeNative(payload byte) error {
	if p.closed.Load() {
		return ErrBackendClosed
	}
	return windows.PostQueuedCompletionStatus(p.iocp, 0, uintptr(payload), nil)
}
