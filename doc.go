// Package engine provides the single-threaded cooperative event engine that
// drives one worker thread of a multi-threaded network server.
//
// # Architecture
//
// Each [Engine] owns exactly one OS readiness [Backend] (epoll on Linux,
// kqueue on Darwin, IOCP on Windows), a battery of eight priority-ordered
// work queues, a cross-thread mailbox fed by [Engine.Post], a wake-up
// transport that interrupts a blocked poll, an optional signal bridge, a
// timer adapter, and a concurrent request-ID index.
//
// The engine is pinned to a single goroutine for its entire lifetime: the
// goroutine that calls [Engine.Start]. All work-queue, backend, and timer
// state, and every write to the request index, is owned exclusively by that
// goroutine. Other goroutines may touch only the mailbox, fed via
// [Engine.Post], the wake-up transport's signal path, via [Engine.Signal]
// (async-signal-safe), and request-index lookups via [RequestIndex.Find].
//
// # Work queues
//
// Eight fixed-priority classes exist, in priority order: fast, accept,
// read, socket, connect, write, shutdown, close. "fast" is the default
// drain target: mailbox transfers, wake-up callbacks, and dispatched
// signals are always queued there. See [WorkQueueClass].
//
// # Platform support
//
// Readiness polling uses platform-native mechanisms:
//   - Linux: epoll, with a self-pipe wake-up.
//   - Darwin: kqueue, with a self-pipe wake-up (EVFILT_READ on the
//     pipe's read end).
//   - Windows: IOCP, with PostQueuedCompletionStatus as the native wake-up.
//
// # Usage
//
//	eng, err := engine.New(engine.WithBatch(64))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Free()
//
//	eng.Post(func() {
//	    fmt.Println("hello from the engine thread")
//	})
//
//	go eng.Start()
package engine
