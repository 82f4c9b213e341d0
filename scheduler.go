package engine

import "time"

// Start runs the scheduler loop on the calling goroutine until Free is
// called and the shutdown drain completes. It returns ErrAlreadyRunning
// if the engine is not in [StateAwake].
//
// The loop, once per tick:
//  1. drains every work queue in priority order (fast, accept, read,
//     socket, connect, write, shutdown, close), with the round-robin
//     cursor fallback once higher classes run dry;
//  2. computes a poll timeout bounded by the nearest pending timer;
//  3. blocks in the backend's Poll for at most that long, or until a
//     wake-up or fd readiness interrupts it;
//  4. refreshes the monotonic clock;
//  5. expires every timer now due.
func (e *Engine) Start() error {
	if !e.state.TryTransition(StateAwake, StateRunning) {
		return ErrAlreadyRunning
	}
	e.AdoptCurrentThread()
	e.now = monotonicMs()

	for {
		if e.hooks != nil && e.hooks.beforeTick != nil {
			e.hooks.beforeTick()
		}
		if !e.tick() {
			return nil
		}
	}
}

// Tick runs a single scheduler iteration without looping, for tests that
// need deterministic single-step control. It polls the backend and expires
// timers only while the engine is in [StateRunning] (as after Start); in
// any other state that has not begun shutting down, it drains the queues
// and returns true without polling.
func (e *Engine) Tick() bool {
	return e.tick()
}

func (e *Engine) tick() bool {
	e.drainQueues()

	if e.state.Load() == StateTerminating {
		if e.queues.total() == 0 {
			_ = e.teardown()
			e.state.Store(StateTerminated)
			return false
		}
		// More work arrived during the shutdown drain; keep going.
	}

	timeoutMs := e.sleepBound()

	if !e.state.TryTransition(StateRunning, StateSleeping) {
		// Free() moved us to Terminating between the drain above and
		// here; loop again immediately so the top-of-tick check catches it.
		return true
	}

	_, err := e.backend.Poll(timeoutMs)

	// If Free() raced us into Terminating while Poll was blocked, leave
	// the state as Terminating: the next tick's top-of-loop check will
	// finish the shutdown drain.
	e.state.TryTransition(StateSleeping, StateRunning)

	if err != nil {
		e.logWarn("engine", "backend poll failed", err)
	}

	if e.hooks != nil && e.hooks.afterPoll != nil {
		e.hooks.afterPoll()
	}

	e.now = monotonicMs()
	e.timers.Expire(e.now)

	return true
}

// drainQueues pops and runs tasks until every class is empty.
func (e *Engine) drainQueues() {
	for {
		t, class, ok := e.queues.pop()
		if !ok {
			return
		}
		if e.metrics != nil {
			e.metrics.Queue.Update(class, e.queues.len(class))
		}
		e.runTask(t)
	}
}

// sleepBound computes the backend poll timeout in milliseconds, capped by
// the nearest pending timer. -1 means block indefinitely (no timers
// pending).
func (e *Engine) sleepBound() int {
	deadline, ok := e.timers.NextDeadline()
	if !ok {
		return -1
	}
	remaining := deadline - e.now
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

func (e *Engine) runTask(t Task) {
	if t == nil {
		return
	}
	defer e.recoverTaskPanic()
	if e.metrics != nil {
		start := time.Now()
		e.fiber.Run(t)
		e.metrics.Latency.Record(time.Since(start))
		return
	}
	e.fiber.Run(t)
}

func (e *Engine) recoverTaskPanic() {
	if r := recover(); r != nil {
		e.logCrit("engine", "task panicked", panicError{Value: r}, nil)
	}
}

func monotonicMs() int64 {
	return time.Now().UnixMilli()
}
