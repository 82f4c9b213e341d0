package engine

import (
	"bytes"
	"container/list"
	"runtime"
	"strconv"
	"sync/atomic"
)

var engineIDCounter atomic.Int64

// Engine is a single-threaded cooperative scheduler that multiplexes fd
// readiness, timers, and cross-thread postings across eight
// priority-ordered work queues. It drives one worker thread of a
// multi-threaded server: callers create one Engine per worker and call
// Start on that worker's own goroutine.
//
// Every field below is owned exclusively by the goroutine that calls
// Start, with the sole exceptions of mailbox (drained, never touched
// directly, by any other goroutine via Post) and the wake-up transport's
// write side (touched by Signal, which must be async-signal-safe).
type Engine struct {
	id int64

	state    *fastState
	queues   *queueBattery
	mailbox  mailbox
	wakeup   *wakeupTransport
	signals  *signalSet
	timers   Timers
	requests *RequestIndex
	backend  Backend
	fiber    FiberExecutor
	logger   Logger
	metrics  *Metrics

	batch          int
	maxConnections uint32

	// Joints, ListenConnections, and IdleConnections are intrusive lists
	// for per-engine connection bookkeeping. The engine itself never
	// populates them; they exist so a server built on this package has a
	// conventional place to park per-engine connection state without
	// inventing its own registry.
	Joints            *list.List
	ListenConnections *list.List
	IdleConnections   *list.List

	now int64 // monotonic milliseconds, refreshed once per tick

	ownerGoroutine atomic.Int64

	hooks *engineTestHooks
}

// engineTestHooks lets tests observe scheduler internals deterministically
// instead of racing real timing. Unexported: only this package's own tests
// construct one.
type engineTestHooks struct {
	beforeTick func()
	afterPoll  func()
}

// New constructs an Engine. The returned Engine is in [StateAwake]; call
// Start to begin draining its work queues.
func New(opts ...EngineOption) (*Engine, error) {
	cfg, err := resolveEngineOptions(opts)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		id:                engineIDCounter.Add(1),
		state:             newFastState(),
		queues:            newQueueBattery(),
		batch:             cfg.batch,
		maxConnections:    cfg.maxConnections,
		Joints:            list.New(),
		ListenConnections: list.New(),
		IdleConnections:   list.New(),
	}

	e.logger = cfg.logger
	if e.logger == nil {
		e.logger = getGlobalLogger()
	}
	e.fiber = cfg.fiberExecutor
	if e.fiber == nil {
		e.fiber = directExecutor{}
	}
	e.requests = NewRequestIndex(e.logger)
	if len(cfg.signals) > 0 {
		e.signals = newSignalSet(cfg.signals)
	}
	if cfg.metricsEnabled {
		e.metrics = newMetrics()
	}

	backend := cfg.backend
	if backend == nil {
		backend = newDefaultBackend()
	}
	if backend == nil {
		return nil, ErrBackendNil
	}

	events := e.batch
	if events <= 0 {
		events = 32
	}
	// Event-set change capacity and timer capacity are sized to four times
	// the expected batch (the ready-event capacity is the batch itself):
	// fewer than twice risks premature flushes of pending changes under
	// bursty readiness; fourfold leaves headroom to spare.
	if err := backend.Create(e, 4*events, events); err != nil {
		return nil, err
	}
	e.backend = backend
	e.timers = NewTimerHeap(4 * events)

	wt, err := newWakeupTransport(e)
	if err != nil {
		_ = backend.Free()
		return nil, err
	}
	e.wakeup = wt

	e.logDebug("engine", "create engine", nil)

	return e, nil
}

// ID returns the engine's process-unique identity, used in log entries.
func (e *Engine) ID() int64 { return e.id }

// State returns the engine's current lifecycle state.
func (e *Engine) State() EngineState { return e.state.Load() }

// Metrics returns the engine's metrics snapshot, or nil if WithMetrics was
// not supplied at construction.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// RequestIndex returns the engine's concurrent request-ID index.
func (e *Engine) RequestIndex() *RequestIndex { return e.requests }

// Post enqueues t to run on the engine goroutine, from the fast queue, as
// soon as the engine next drains its mailbox. Safe to call from any
// goroutine. Returns ErrEngineTerminated once the engine has finished
// shutting down.
func (e *Engine) Post(t Task) error {
	if !e.state.CanAcceptWork() {
		return ErrEngineTerminated
	}
	e.mailbox.post(t)
	return e.wakeup.post()
}

// Signal requests dispatch of the OS signal signo on the engine
// goroutine. It must be async-signal-safe: call it only from inside an OS
// signal handler, or from any goroutine that simply wants to simulate
// one. It never touches the mailbox or work queues directly, only the
// wake-up transport.
func (e *Engine) Signal(signo int) error {
	if e.signals == nil {
		return ErrSignalUnsupported
	}
	if !e.state.CanAcceptWork() {
		return ErrEngineTerminated
	}
	return e.wakeup.signal(signo)
}

func (e *Engine) dispatchSignal(signo int) {
	if e.signals == nil {
		e.logCrit("signal", "signal received with no bridge configured", nil, map[string]any{"signo": signo})
		return
	}
	entry, ok := e.signals.find(signo)
	if !ok {
		e.logCrit("signal", "unhandled signal, discarding", ErrSignalUnknown, map[string]any{"signo": signo})
		return
	}
	if entry.Handler != nil {
		e.queues.enqueue(ClassFast, entry.Handler)
	}
}

func (e *Engine) drainMailboxIntoFast() {
	for _, t := range e.mailbox.drain() {
		e.queues.enqueue(ClassFast, t)
	}
}

// Change hot-swaps the engine's backend, preserving every queued task.
// Any bytes still pending on the old wake-up transport are flushed into
// the fast queue synchronously before the swap, and the old transport's
// file descriptors are closed via a deferred fast-queue task rather than
// immediately, so a wake-up already in flight on the old backend is not
// lost mid-swap. A batch of 0 keeps the engine's current batch hint.
// Must be called from the engine goroutine.
func (e *Engine) Change(newBackend Backend, batch int) error {
	if newBackend == nil {
		return ErrBackendNil
	}
	if !e.state.CanAcceptWork() {
		return ErrEngineTerminated
	}
	if batch > 0 {
		e.batch = batch
	}

	events := e.batch
	if events <= 0 {
		events = 32
	}
	if err := newBackend.Create(e, 4*events, events); err != nil {
		return err
	}

	oldBackend := e.backend
	oldWakeup := e.wakeup

	// Flush pending posts and signal bytes off the old pipe now, while the
	// old transport is still registered: anything written before the swap
	// lands on the fast queue and runs before the new backend's first poll.
	if oldWakeup.usesFD {
		oldWakeup.onReadable()
	}

	e.backend = newBackend
	newWakeup, err := newWakeupTransport(e)
	if err != nil {
		_ = newBackend.Free()
		e.backend = oldBackend
		return err
	}
	e.wakeup = newWakeup

	e.queues.enqueue(ClassFast, func() {
		if oldWakeup.usesFD {
			closeWakeFd(oldWakeup.readFD, oldWakeup.writeFD)
		}
	})

	if err := oldBackend.Free(); err != nil {
		e.logWarn("engine", "old backend free failed", err)
	}

	return nil
}

// Free begins engine shutdown. If Start has not been called, resources
// are released immediately. Otherwise the engine transitions to
// [StateTerminating]: the scheduler loop drains remaining work (new work
// may still be posted and signaled during this drain) before releasing
// resources and entering [StateTerminated]. Calling Free more than once is
// safe; later calls are no-ops.
func (e *Engine) Free() error {
	for {
		switch e.state.Load() {
		case StateAwake:
			if e.state.TryTransition(StateAwake, StateTerminated) {
				return e.teardown()
			}
		case StateRunning:
			if e.state.TryTransition(StateRunning, StateTerminating) {
				_ = e.wakeup.post()
				return nil
			}
		case StateSleeping:
			if e.state.TryTransition(StateSleeping, StateTerminating) {
				_ = e.wakeup.post()
				return nil
			}
		case StateTerminating, StateTerminated:
			return nil
		}
	}
}

// teardown releases the wake-up transport, pending timers, and the
// backend. Timers that never fired are dropped without running their
// callbacks.
func (e *Engine) teardown() error {
	e.logDebug("engine", "free engine", nil)
	if e.wakeup != nil {
		e.wakeup.close()
	}
	e.timers = NewTimerHeap(0)
	if e.backend != nil {
		return e.backend.Free()
	}
	return nil
}

// AdoptCurrentThread records the calling goroutine as the engine's owner,
// for tests asserting the single-writer-thread invariant. Start calls this
// automatically; user code only needs it when driving the scheduler loop
// manually (e.g. via Tick in a test).
func (e *Engine) AdoptCurrentThread() {
	e.ownerGoroutine.Store(getGoroutineID())
}

// IsEngineGoroutine reports whether the calling goroutine is the one that
// last called AdoptCurrentThread or Start.
func (e *Engine) IsEngineGoroutine() bool {
	return e.ownerGoroutine.Load() == getGoroutineID()
}

func (e *Engine) logDebug(category, msg string, err error) {
	if e.logger == nil || !e.logger.IsEnabled(LogLevelDebug) {
		return
	}
	e.logger.Log(LogEntry{Level: LogLevelDebug, Category: category, EngineID: e.id, Message: msg, Err: err})
}

func (e *Engine) logWarn(category, msg string, err error) {
	if e.logger == nil || !e.logger.IsEnabled(LogLevelWarn) {
		return
	}
	e.logger.Log(LogEntry{Level: LogLevelWarn, Category: category, EngineID: e.id, Message: msg, Err: err})
}

func (e *Engine) logCrit(category, msg string, err error, context map[string]any) {
	if e.logger == nil || !e.logger.IsEnabled(LogLevelCrit) {
		return
	}
	e.logger.Log(LogEntry{
		Level: LogLevelCrit, Category: category, EngineID: e.id, Message: msg, Err: err,
		Context: context,
	})
}

// getGoroutineID extracts the calling goroutine's ID by parsing the
// "goroutine N [running]:" header of its own stack trace. There is no
// supported API for this; it exists purely so tests and AdoptCurrentThread
// can assert single-goroutine ownership, never on a hot path.
func getGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(line, []byte(prefix)) {
		return -1
	}
	line = line[len(prefix):]
	end := bytes.IndexByte(line, ' ')
	if end < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(line[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
