package registry

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Holder publishes the current registry. Reload builds a complete registry
// before swapping it in, so readers only ever see a fully loaded one.
type Holder struct {
	current atomic.Pointer[Registry]
	build   func() *Registry
	mu      sync.Mutex
}

// NewHolder builds the initial registry with build and keeps build for reloads.
func NewHolder(build func() *Registry) *Holder {
	h := &Holder{build: build}
	reg := build()
	if reg == nil {
		reg = New(nil)
	}
	h.current.Store(reg)
	return h
}

// DirHolder loads artifacts from dir now and on every reload.
func DirHolder(dir string, logger *slog.Logger) *Holder {
	return NewHolder(func() *Registry { return LoadDir(dir, logger) })
}

// Current returns the published registry.
func (h *Holder) Current() *Registry {
	return h.current.Load()
}

// Reload rebuilds the registry and publishes it, returning the new one.
// Concurrent reloads are serialised; readers are never blocked.
func (h *Holder) Reload() *Registry {
	h.mu.Lock()
	defer h.mu.Unlock()

	reg := h.build()
	if reg == nil {
		reg = New(nil)
	}
	h.current.Store(reg)
	return reg
}
