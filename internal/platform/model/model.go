// Package model owns the process-wide inference resource: the lazily loaded
// model/runtime pair shared by every request.
//
// Lifecycle is explicit: unloaded -> loading -> ready. A failed load drops
// back to unloaded and is never cached; reload tears the previous runtime
// down before constructing the next; release frees accelerator memory and
// resets to unloaded. At most one runtime is ready at a time
package model

import (
	"context"
	"sync"
	"time"

	"lumen/internal/core/tiling"
	perr "lumen/internal/platform/errors"
	"lumen/internal/platform/logger"
)

// Runtime is the opaque generation capability backed by a loaded model.
// Only the Manager constructs or tears these down
type Runtime interface {
	// Generate produces text for a normalized tile batch and prompt.
	// May block indefinitely; no deadline is imposed here
	Generate(ctx context.Context, batch tiling.Batch, prompt string) (string, error)
	// ID reports the model identifier the runtime was loaded with
	ID() string
	// Close frees the runtime and any accelerator memory it holds
	Close() error
}

// Loader constructs a Runtime for a model identifier
type Loader func(ctx context.Context, id string) (Runtime, error)

// Config configures the Manager
type Config struct {
	// ID is the model identifier to load
	ID string
}

type state uint8

const (
	stateUnloaded state = iota
	stateLoading
	stateReady
)

// flight is one in-progress load; waiters share its outcome, success or not
type flight struct {
	done chan struct{}
	rt   Runtime
	err  error
}

// Manager serializes load/reload/release of the shared runtime.
// The zero value is not usable; construct with New
type Manager struct {
	loader Loader
	log    logger.Logger

	mu       sync.Mutex
	id       string
	st       state
	rt       Runtime
	inflight *flight
}

// New builds a Manager; nothing is loaded until the first Acquire
func New(cfg Config, loader Loader) *Manager {
	return &Manager{
		loader: loader,
		log:    *logger.Named("model"),
		id:     cfg.ID,
	}
}

// ModelID returns the identifier the next load will use
func (m *Manager) ModelID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// Ready reports whether a runtime is currently loaded
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st == stateReady
}

// Acquire returns the ready runtime, loading it first if needed. Exactly one
// load is in flight process-wide; concurrent acquirers wait on it and share
// its outcome, including failure. A failed load is not cached - the next
// Acquire retries
func (m *Manager) Acquire(ctx context.Context) (Runtime, error) {
	m.mu.Lock()
	if m.st == stateReady {
		rt := m.rt
		m.mu.Unlock()
		return rt, nil
	}
	if f := m.inflight; f != nil {
		m.mu.Unlock()
		select {
		case <-f.done:
			return f.rt, f.err
		case <-ctx.Done():
			return nil, perr.Wrap(ctx.Err(), perr.ErrorCodeUnavailable, "waiting for model load")
		}
	}

	// this caller performs the load
	f := &flight{done: make(chan struct{})}
	m.inflight = f
	m.st = stateLoading
	id := m.id
	m.mu.Unlock()

	start := time.Now()
	rt, err := m.loader(ctx, id)

	m.mu.Lock()
	m.inflight = nil
	if err != nil {
		m.st = stateUnloaded
		f.err = perr.Wrapf(err, perr.ErrorCodeModelLoad, "load model %q", id)
		m.log.Error().Err(err).Str("model", id).Msg("model load failed")
	} else {
		m.st = stateReady
		m.rt = rt
		f.rt = rt
		m.log.Info().Str("model", id).Dur("elapsed", time.Since(start)).Msg("model loaded")
	}
	m.mu.Unlock()
	close(f.done)

	return f.rt, f.err
}

// Reload tears down the current runtime (if any) and loads fresh. A non-empty
// newID swaps the backing model identifier first
func (m *Manager) Reload(ctx context.Context, newID string) (Runtime, error) {
	m.mu.Lock()
	for m.inflight != nil {
		f := m.inflight
		m.mu.Unlock()
		select {
		case <-f.done:
		case <-ctx.Done():
			return nil, perr.Wrap(ctx.Err(), perr.ErrorCodeUnavailable, "waiting for model load")
		}
		m.mu.Lock()
	}
	if m.rt != nil {
		if err := m.rt.Close(); err != nil {
			m.log.Warn().Err(err).Msg("closing previous runtime")
		}
		m.rt = nil
	}
	if newID != "" {
		m.id = newID
	}
	m.st = stateUnloaded
	m.mu.Unlock()

	return m.Acquire(ctx)
}

// Release frees the runtime and resets to unloaded. Also doubles as the
// best-effort accelerator cache clear after an out-of-memory failure;
// callers must not let a Release error mask the error they are reporting
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rt == nil {
		m.st = stateUnloaded
		return nil
	}
	err := m.rt.Close()
	m.rt = nil
	m.st = stateUnloaded
	if err != nil {
		m.log.Warn().Err(err).Msg("runtime close failed during release")
		return err
	}
	m.log.Info().Str("model", m.id).Msg("runtime released")
	return nil
}
