// Package tasks runs deferred work that must outlive the HTTP response
// that spawned it, such as finishing a generation turn after the client
// disconnected. Tasks are supervised: panics are recovered, failures
// are reported on an error channel and logged, and Shutdown waits for
// in-flight tasks.
package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

type Registry struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	errs    chan error
	closed  bool
	timeout time.Duration
}

// NewRegistry creates a registry. timeout bounds each task's run; zero
// means no bound.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		errs:    make(chan error, 64),
		timeout: timeout,
	}
}

// Errors exposes task failures for tests and supervisors. Every
// failure is also logged; the registry never consumes this channel
// itself, so a supervisor sees each failure exactly once. When the
// buffer fills without a consumer, further failures are log-only.
func (r *Registry) Errors() <-chan error { return r.errs }

// Go runs fn on a background context detached from any request
// lifecycle. It returns false if the registry is already shut down.
func (r *Registry) Go(name string, fn func(ctx context.Context) error) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		ctx := context.Background()
		var cancel context.CancelFunc
		if r.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		defer func() {
			if rec := recover(); rec != nil {
				r.report(fmt.Errorf("task %s panicked: %v", name, rec))
			}
		}()

		if err := fn(ctx); err != nil {
			r.report(fmt.Errorf("task %s failed: %w", name, err))
		}
	}()
	return true
}

func (r *Registry) report(err error) {
	log.Printf("[tasks] %v", err)
	select {
	case r.errs <- err:
	default:
	}
}

// Shutdown stops accepting tasks and waits for in-flight ones until
// ctx expires.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
