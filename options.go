// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

// engineOptions holds configuration gathered from EngineOption values
// before New constructs an Engine.
type engineOptions struct {
	batch          int
	backend        Backend
	fiberExecutor  FiberExecutor
	signals        []SignalEntry
	logger         Logger
	metricsEnabled bool
	maxConnections uint32
}

// EngineOption configures an Engine at construction time.
type EngineOption interface {
	applyEngine(*engineOptions) error
}

type engineOptionImpl struct {
	applyEngineFunc func(*engineOptions) error
}

func (o *engineOptionImpl) applyEngine(opts *engineOptions) error {
	return o.applyEngineFunc(opts)
}

// WithBatch sets the expected number of simultaneously-ready events. It is
// passed to the backend as its ready-event capacity (the epoll and kqueue
// backends size their event buffers to it), and four times this value is
// passed as its change-set capacity and used as the timer heap's initial
// capacity. The built-in backends apply interest-set changes immediately
// and do not use the change-set capacity. Zero or negative selects a
// default of 32.
func WithBatch(n int) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.batch = n
		return nil
	}}
}

// WithBackend supplies the readiness backend the engine drives. If omitted,
// New constructs the platform default (epoll, kqueue, or IOCP).
func WithBackend(b Backend) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.backend = b
		return nil
	}}
}

// WithFibers installs a [FiberExecutor] used to run handlers that need to
// unwind back to the scheduler loop mid-execution (e.g. blocking-style
// handler code implemented atop a coroutine). Without this option the
// engine runs every task as a plain function call.
func WithFibers(executor FiberExecutor) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.fiberExecutor = executor
		return nil
	}}
}

// WithSignals enables the signal bridge and registers the given entries in
// priority (first-match) order. Signals not present in entries are
// CRIT-logged and discarded when they arrive.
func WithSignals(entries ...SignalEntry) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.signals = append(opts.signals, entries...)
		return nil
	}}
}

// WithLogger overrides the package-wide default logger for this Engine.
func WithLogger(l Logger) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithMetrics enables per-class queue-depth and dispatch-latency tracking,
// retrievable via Engine.Metrics.
func WithMetrics(enabled bool) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithMaxConnections overrides the default connection ceiling (2^32-1).
func WithMaxConnections(n uint32) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.maxConnections = n
		return nil
	}}
}

func resolveEngineOptions(opts []EngineOption) (*engineOptions, error) {
	cfg := &engineOptions{
		batch:          32,
		maxConnections: 0xffffffff,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyEngine(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.batch <= 0 {
		cfg.batch = 32
	}
	return cfg, nil
}
