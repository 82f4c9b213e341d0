//go:build linux

package engine

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// epollMaxFDs bounds the direct-indexed fd table. 65536 covers every
// practical per-process descriptor limit without forcing a map lookup on
// the dispatch hot path.
const epollMaxFDs = 65536

type epollFDInfo struct {
	onRead, onWrite, onError Task
	readClass, writeClass    WorkQueueClass
	events                   IOEvents
	active                   bool
}

// EpollBackend implements [Backend] on Linux using epoll. Registration
// uses direct array indexing for O(1) dispatch; readiness callbacks are
// copied out under a read lock and invoked outside it, so a concurrent
// UnregisterFD can race a callback already in flight (see UnregisterFD).
type EpollBackend struct {
	eng      *Engine
	epfd     int32
	version  atomic.Uint64
	eventBuf []unix.EpollEvent
	fds      [epollMaxFDs]epollFDInfo
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

// NewEpollBackend constructs an uninitialized epoll backend; Create
// performs the actual epoll_create1 call.
func NewEpollBackend() *EpollBackend { return &EpollBackend{} }

// newDefaultBackend returns the platform's default Backend.
func newDefaultBackend() Backend { return NewEpollBackend() }

func (p *EpollBackend) Create(eng *Engine, changesCap, eventsCap int) error {
	if eventsCap <= 0 {
		eventsCap = 32
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.eng = eng
	p.epfd = int32(epfd)
	p.eventBuf = make([]unix.EpollEvent, eventsCap)
	return nil
}

func (p *EpollBackend) Free() error {
	p.closed.Store(true)
	if p.epfd > 0 {
		return unix.Close(int(p.epfd))
	}
	return nil
}

func (p *EpollBackend) SignalSupport() bool { return false }

func (p *EpollBackend) RegisterFD(fd int, events IOEvents, readClass, writeClass WorkQueueClass, onRead, onWrite, onError Task) error {
	if p.closed.Load() {
		return ErrBackendClosed
	}
	if fd < 0 || fd >= epollMaxFDs {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = epollFDInfo{
		onRead: onRead, onWrite: onWrite, onError: onError,
		readClass: readClass, writeClass: writeClass,
		events: events, active: true,
	}
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.fdMu.Lock()
		p.fds[fd] = epollFDInfo{}
		p.fdMu.Unlock()
		return err
	}
	return nil
}

func (p *EpollBackend) UnregisterFD(fd int) error {
	if fd < 0 || fd >= epollMaxFDs {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	p.fds[fd] = epollFDInfo{}
	p.version.Add(1)
	p.fdMu.Unlock()

	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *EpollBackend) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 || fd >= epollMaxFDs {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	p.fds[fd].events = events
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *EpollBackend) Poll(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrBackendClosed
	}

	v := p.version.Load()

	n, err := unix.EpollWait(int(p.epfd), p.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	if p.version.Load() != v {
		return 0, nil
	}

	p.dispatch(n)
	return n, nil
}

func (p *EpollBackend) dispatch(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		if fd < 0 || fd >= epollMaxFDs {
			continue
		}
		p.fdMu.RLock()
		info := p.fds[fd]
		p.fdMu.RUnlock()
		if !info.active {
			continue
		}
		events := epollToEvents(p.eventBuf[i].Events)
		if events&(EventError|EventHangup) != 0 && info.onError != nil {
			info.onError()
			continue
		}
		if events&EventRead != 0 && info.onRead != nil {
			p.eng.queues.enqueue(info.readClass, info.onRead)
		}
		if events&EventWrite != 0 && info.onWrite != nil {
			p.eng.queues.enqueue(info.writeClass, info.onWrite)
		}
	}
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
