//go:build darwin

package engine

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// kqueueMaxFDLimit bounds dynamic growth of the fd table. 100M comfortably
// exceeds any production ulimit -n.
const kqueueMaxFDLimit = 100000000

type kqueueFDInfo struct {
	onRead, onWrite, onError Task
	readClass, writeClass    WorkQueueClass
	events                   IOEvents
	active                   bool
}

// KqueueBackend implements [Backend] on Darwin using kqueue. The fd
// table grows on demand rather than being fixed-size, since Darwin
// descriptor numbers are not as tightly bounded as Linux's.
type KqueueBackend struct {
	eng      *Engine
	kq       int32
	eventBuf []unix.Kevent_t
	fds      []kqueueFDInfo
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

// NewKqueueBackend constructs an uninitialized kqueue backend; Create
// performs the actual kqueue(2) call.
func NewKqueueBackend() *KqueueBackend { return &KqueueBackend{} }

// newDefaultBackend returns the platform's default Backend.
func newDefaultBackend() Backend { return NewKqueueBackend() }

func (p *KqueueBackend) Create(eng *Engine, changesCap, eventsCap int) error {
	if eventsCap <= 0 {
		eventsCap = 32
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.eng = eng
	p.kq = int32(kq)
	p.eventBuf = make([]unix.Kevent_t, eventsCap)
	return nil
}

func (p *KqueueBackend) Free() error {
	p.closed.Store(true)
	if p.kq > 0 {
		return unix.Close(int(p.kq))
	}
	return nil
}

func (p *KqueueBackend) SignalSupport() bool { return false }

func (p *KqueueBackend) RegisterFD(fd int, events IOEvents, readClass, writeClass WorkQueueClass, onRead, onWrite, onError Task) error {
	if p.closed.Load() {
		return ErrBackendClosed
	}
	if fd < 0 || fd >= kqueueMaxFDLimit {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if fd >= len(p.fds) {
		newSize := fd*2 + 1
		if newSize > kqueueMaxFDLimit {
			newSize = kqueueMaxFDLimit + 1
		}
		grown := make([]kqueueFDInfo, newSize)
		copy(grown, p.fds)
		p.fds = grown
	}
	if p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = kqueueFDInfo{
		onRead: onRead, onWrite: onWrite, onError: onError,
		readClass: readClass, writeClass: writeClass,
		events: events, active: true,
	}
	p.fdMu.Unlock()

	if kevs := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE); len(kevs) > 0 {
		if _, err := unix.Kevent(int(p.kq), kevs, nil, nil); err != nil {
			p.fdMu.Lock()
			p.fds[fd] = kqueueFDInfo{}
			p.fdMu.Unlock()
			return err
		}
	}
	return nil
}

// UnregisterFD removes fd from monitoring. A callback already copied out
// of the table by a concurrent dispatch may still run once after this
// returns; callers must not close fd until certain no such callback is in
// flight.
func (p *KqueueBackend) UnregisterFD(fd int) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	events := p.fds[fd].events
	p.fds[fd] = kqueueFDInfo{}
	p.fdMu.Unlock()

	if kevs := eventsToKevents(fd, events, unix.EV_DELETE); len(kevs) > 0 {
		_, _ = unix.Kevent(int(p.kq), kevs, nil, nil)
	}
	return nil
}

func (p *KqueueBackend) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	old := p.fds[fd].events
	p.fds[fd].events = events
	p.fdMu.Unlock()

	if removed := old &^ events; removed != 0 {
		if kevs := eventsToKevents(fd, removed, unix.EV_DELETE); len(kevs) > 0 {
			_, _ = unix.Kevent(int(p.kq), kevs, nil, nil)
		}
	}
	if added := events &^ old; added != 0 {
		if kevs := eventsToKevents(fd, added, unix.EV_ADD|unix.EV_ENABLE); len(kevs) > 0 {
			if _, err := unix.Kevent(int(p.kq), kevs, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *KqueueBackend) Poll(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrBackendClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	p.dispatch(n)
	return n, nil
}

func (p *KqueueBackend) dispatch(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		if fd < 0 {
			continue
		}
		p.fdMu.RLock()
		var info kqueueFDInfo
		if fd < len(p.fds) {
			info = p.fds[fd]
		}
		p.fdMu.RUnlock()
		if !info.active {
			continue
		}
		events := keventToEvents(&p.eventBuf[i])
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

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevs []unix.Kevent_t
	if events&EventRead != 0 {
		kevs = append(kevs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		kevs = append(kevs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevs
}

func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
