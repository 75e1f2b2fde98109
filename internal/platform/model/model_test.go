package model

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lumen/internal/core/tiling"
	perr "lumen/internal/platform/errors"
)

type fakeRuntime struct {
	id     string
	closed atomic.Bool
}

func (f *fakeRuntime) Generate(context.Context, tiling.Batch, string) (string, error) {
	return "a description", nil
}
func (f *fakeRuntime) ID() string { return f.id }
func (f *fakeRuntime) Close() error {
	f.closed.Store(true)
	return nil
}

func TestAcquire_LoadsOnce(t *testing.T) {
	var loads atomic.Int32
	m := New(Config{ID: "test-model"}, func(_ context.Context, id string) (Runtime, error) {
		loads.Add(1)
		return &fakeRuntime{id: id}, nil
	})

	first, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	second, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if first != second {
		t.Fatalf("expected same runtime identity across acquires")
	}
	if n := loads.Load(); n != 1 {
		t.Fatalf("expected 1 load, got %d", n)
	}
}

func TestAcquire_SingleFlight(t *testing.T) {
	var loads atomic.Int32
	gate := make(chan struct{})
	m := New(Config{ID: "m"}, func(_ context.Context, id string) (Runtime, error) {
		loads.Add(1)
		<-gate
		return &fakeRuntime{id: id}, nil
	})

	const n = 8
	got := make([]Runtime, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = m.Acquire(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond) // let everyone pile onto the flight
	close(gate)
	wg.Wait()

	if l := loads.Load(); l != 1 {
		t.Fatalf("expected exactly one load, got %d", l)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("acquirer %d failed: %v", i, errs[i])
		}
		if got[i] != got[0] {
			t.Fatalf("acquirer %d got a different runtime", i)
		}
	}
}

func TestAcquire_SharedFailureNotCached(t *testing.T) {
	var loads atomic.Int32
	gate := make(chan struct{})
	m := New(Config{ID: "m"}, func(_ context.Context, id string) (Runtime, error) {
		if loads.Add(1) == 1 {
			<-gate
			return nil, perr.Internalf("weights truncated")
		}
		return &fakeRuntime{id: id}, nil
	})

	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Acquire(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] == nil {
			t.Fatalf("acquirer %d should have seen the load failure", i)
		}
		if !perr.IsCode(errs[i], perr.ErrorCodeModelLoad) {
			t.Fatalf("acquirer %d: expected model load code, got %v", i, errs[i])
		}
	}
	if l := loads.Load(); l != 1 {
		t.Fatalf("failure fanned out to %d loads", l)
	}

	// failure is not cached; the next acquire retries and succeeds
	rt, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if rt == nil || rt.ID() != "m" {
		t.Fatalf("unexpected runtime after retry: %v", rt)
	}
	if l := loads.Load(); l != 2 {
		t.Fatalf("expected retry to load again, got %d loads", l)
	}
}

func TestAcquire_WaiterHonorsContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	m := New(Config{ID: "m"}, func(context.Context, string) (Runtime, error) {
		<-gate
		return &fakeRuntime{id: "m"}, nil
	})

	go func() { _, _ = m.Acquire(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Acquire(ctx)
	if err == nil {
		t.Fatalf("cancelled waiter should fail")
	}
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("expected unavailable code, got %v", err)
	}
}

func TestReload_SwapsIdentifierAndClosesOld(t *testing.T) {
	m := New(Config{ID: "first"}, func(_ context.Context, id string) (Runtime, error) {
		return &fakeRuntime{id: id}, nil
	})

	old, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	fresh, err := m.Reload(context.Background(), "second")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.ID() != "second" {
		t.Fatalf("reload did not swap identifier: %s", fresh.ID())
	}
	if !old.(*fakeRuntime).closed.Load() {
		t.Fatalf("previous runtime not closed before reload")
	}
	if m.ModelID() != "second" {
		t.Fatalf("manager identifier not updated")
	}
}

func TestReload_KeepsIdentifierWhenEmpty(t *testing.T) {
	m := New(Config{ID: "keep"}, func(_ context.Context, id string) (Runtime, error) {
		return &fakeRuntime{id: id}, nil
	})
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	rt, err := m.Reload(context.Background(), "")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if rt.ID() != "keep" {
		t.Fatalf("empty reload changed identifier to %s", rt.ID())
	}
}

func TestRelease_ResetsToUnloaded(t *testing.T) {
	var loads atomic.Int32
	m := New(Config{ID: "m"}, func(_ context.Context, id string) (Runtime, error) {
		loads.Add(1)
		return &fakeRuntime{id: id}, nil
	})

	rt, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !m.Ready() {
		t.Fatalf("manager should be ready after acquire")
	}
	if err := m.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if m.Ready() {
		t.Fatalf("manager should be unloaded after release")
	}
	if !rt.(*fakeRuntime).closed.Load() {
		t.Fatalf("release did not close the runtime")
	}

	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if l := loads.Load(); l != 2 {
		t.Fatalf("expected a fresh load after release, got %d", l)
	}
}

func TestRelease_IdempotentWhenUnloaded(t *testing.T) {
	m := New(Config{ID: "m"}, func(context.Context, string) (Runtime, error) {
		return &fakeRuntime{id: "m"}, nil
	})
	if err := m.Release(); err != nil {
		t.Fatalf("release on unloaded manager: %v", err)
	}
}
