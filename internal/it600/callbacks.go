package it600

import (
	"context"
	"sync"
)

// UpdateCallback is invoked after a device snapshot changes during a
// notifying poll. The snapshot is already visible through the getters.
type UpdateCallback func(ctx context.Context, kind Kind, deviceID string)

// callbackRegistry holds subscriber lists per kind. Callbacks run in
// registration order on the polling goroutine.
type callbackRegistry struct {
	mu     sync.RWMutex
	byKind map[Kind][]UpdateCallback
	logger Logger
}

func newCallbackRegistry(logger Logger) *callbackRegistry {
	return &callbackRegistry{
		byKind: make(map[Kind][]UpdateCallback),
		logger: logger,
	}
}

func (r *callbackRegistry) add(kind Kind, cb UpdateCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[kind] = append(r.byKind[kind], cb)
}

func (r *callbackRegistry) count(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKind[kind])
}

func (r *callbackRegistry) notify(ctx context.Context, kind Kind, deviceID string) {
	r.mu.RLock()
	subscribers := append([]UpdateCallback(nil), r.byKind[kind]...)
	r.mu.RUnlock()

	if len(subscribers) == 0 {
		r.logger.Warn("device updated but no callbacks registered", "kind", kind, "device_id", deviceID)
		return
	}

	for _, cb := range subscribers {
		cb(ctx, kind, deviceID)
	}
}
