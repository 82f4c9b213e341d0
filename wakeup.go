package engine

// wakeUpReadBatch is the maximum number of bytes drained from the wake-up
// transport per read: enough to absorb a burst of coalesced posts and
// signals without an unbounded loop.
const wakeUpReadBatch = 128

// nativeWaker is implemented by backends that can interrupt a blocked
// Poll without a self-pipe file descriptor — Windows IOCP, via
// PostQueuedCompletionStatus. Used only when the platform's createWakeFd
// reports no usable fd pair (isWakeFdSupported returns false).
type nativeWaker interface {
	WakeNative(payload byte) error
}

// wakeupTransport interrupts the engine's blocked Poll so it can notice a
// cross-thread mailbox post or a dispatched signal. It carries a one-byte
// protocol: 0 means "drain the mailbox", any other value is the signal
// number to dispatch.
//
// On platforms where createWakeFd yields a usable fd pair (a self-pipe on
// Linux and Darwin) the read end is registered with the backend like any
// other fd: reads happen inline on the engine goroutine, from the fast
// queue. On Windows, where no such fd exists, the backend's native waker
// is used directly instead.
type wakeupTransport struct {
	eng         *Engine
	readFD      int
	writeFD     int
	usesFD      bool
	postPending bool
}

func newWakeupTransport(eng *Engine) (*wakeupTransport, error) {
	wt := &wakeupTransport{eng: eng, readFD: -1, writeFD: -1}

	if !isWakeFdSupported() {
		wt.usesFD = false
		return wt, nil
	}

	readFD, writeFD, err := createWakeFd(0, 0)
	if err != nil {
		return nil, err
	}
	wt.readFD, wt.writeFD = readFD, writeFD
	wt.usesFD = true

	if err := eng.backend.RegisterFD(readFD, EventRead, ClassFast, 0, wt.onReadable, nil, wt.onError); err != nil {
		closeWakeFd(readFD, writeFD)
		return nil, err
	}
	return wt, nil
}

// post requests a mailbox drain on the engine's next tick.
func (wt *wakeupTransport) post() error {
	return wt.write(0)
}

// signal requests dispatch of signo on the engine's next tick. Must be
// safe to call from an OS signal handler: it performs at most one
// non-blocking or async-signal-safe write and touches no shared memory
// other than the transport's own fds.
func (wt *wakeupTransport) signal(signo int) error {
	return wt.write(byte(signo))
}

func (wt *wakeupTransport) write(b byte) error {
	if !wt.usesFD {
		nw, ok := wt.eng.backend.(nativeWaker)
		if !ok {
			return ErrBackendNil
		}
		return nw.WakeNative(b)
	}
	_, err := writeFD(wt.writeFD, []byte{b})
	return err
}

// onReadable drains every pending byte from the self-pipe, dispatching
// signals immediately and deferring the mailbox drain until the loop
// completes: a post byte only flips a flag, processed once after the read
// loop has drained everything else.
func (wt *wakeupTransport) onReadable() {
	var buf [wakeUpReadBatch]byte
	for {
		n, err := readFD(wt.readFD, buf[:])
		if n <= 0 || err != nil {
			break
		}
		for _, b := range buf[:n] {
			if b == 0 {
				wt.postPending = true
				continue
			}
			wt.eng.dispatchSignal(int(b))
		}
		if n < len(buf) {
			break
		}
	}
	if wt.postPending {
		wt.postPending = false
		wt.eng.drainMailboxIntoFast()
	}
}

func (wt *wakeupTransport) onError() {
	wt.eng.logCrit("wakeup", "wake-up transport error, closing", nil, nil)
	wt.close()
}

// deliverNative handles a wake-up observed directly from the backend
// (Windows), bypassing the fd read loop entirely.
func (wt *wakeupTransport) deliverNative(payload byte) {
	if payload == 0 {
		wt.eng.drainMailboxIntoFast()
		return
	}
	wt.eng.dispatchSignal(int(payload))
}

func (wt *wakeupTransport) close() {
	if wt.usesFD {
		_ = wt.eng.backend.UnregisterFD(wt.readFD)
		closeWakeFd(wt.readFD, wt.writeFD)
		wt.usesFD = false
	}
}
