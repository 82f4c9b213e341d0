package engine

import "testing"

func TestResolveEngineOptionsDefaults(t *testing.T) {
	cfg, err := resolveEngineOptions(nil)
	if err != nil {
		t.Fatalf("resolveEngineOptions(nil) failed: %v", err)
	}
	if cfg.batch != 32 {
		t.Errorf("default batch = %d, want 32", cfg.batch)
	}
	if cfg.maxConnections != 0xffffffff {
		t.Errorf("default maxConnections = %d, want 2^32-1", cfg.maxConnections)
	}
	if cfg.backend != nil {
		t.Error("default backend should be nil (resolved later to the platform default)")
	}
}

func TestResolveEngineOptionsCustomBatch(t *testing.T) {
	cfg, err := resolveEngineOptions([]EngineOption{WithBatch(128)})
	if err != nil {
		t.Fatalf("resolveEngineOptions failed: %v", err)
	}
	if cfg.batch != 128 {
		t.Errorf("batch = %d, want 128", cfg.batch)
	}
}

func TestResolveEngineOptionsNonPositiveBatchFallsBackToDefault(t *testing.T) {
	cfg, err := resolveEngineOptions([]EngineOption{WithBatch(0)})
	if err != nil {
		t.Fatalf("resolveEngineOptions failed: %v", err)
	}
	if cfg.batch != 32 {
		t.Errorf("batch = %d, want 32 (non-positive batch falls back to default)", cfg.batch)
	}
}

func TestResolveEngineOptionsSkipsNil(t *testing.T) {
	cfg, err := resolveEngineOptions([]EngineOption{nil, WithMetrics(true), nil})
	if err != nil {
		t.Fatalf("resolveEngineOptions failed: %v", err)
	}
	if !cfg.metricsEnabled {
		t.Fatal("metricsEnabled should be true, WithMetrics(true) was supplied alongside nils")
	}
}

func TestWithSignalsAccumulates(t *testing.T) {
	cfg, err := resolveEngineOptions([]EngineOption{
		WithSignals(SignalEntry{Signo: 1}),
		WithSignals(SignalEntry{Signo: 2}),
	})
	if err != nil {
		t.Fatalf("resolveEngineOptions failed: %v", err)
	}
	if len(cfg.signals) != 2 {
		t.Fatalf("len(signals) = %d, want 2 (successive WithSignals calls should accumulate)", len(cfg.signals))
	}
}
