package tasks

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGo_ReportsFailures(t *testing.T) {
	r := NewRegistry(0)

	boom := errors.New("boom")
	if ok := r.Go("failing", func(ctx context.Context) error { return boom }); !ok {
		t.Fatalf("expected task to be accepted")
	}

	select {
	case err := <-r.Errors():
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped task error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no error reported")
	}
}

func TestErrors_DeliversEveryFailure(t *testing.T) {
	r := NewRegistry(0)

	const n = 10
	for i := 0; i < n; i++ {
		r.Go("failing", func(ctx context.Context) error { return errors.New("boom") })
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// All tasks finished, so every failure must already sit in the
	// buffer with no other consumer racing for it.
	for i := 0; i < n; i++ {
		select {
		case err := <-r.Errors():
			if err == nil {
				t.Fatalf("failure %d: got nil error", i)
			}
		default:
			t.Fatalf("failure %d never delivered", i)
		}
	}
}

func TestGo_RecoversPanics(t *testing.T) {
	r := NewRegistry(0)

	r.Go("panicking", func(ctx context.Context) error { panic("oops") })

	select {
	case err := <-r.Errors():
		if err == nil {
			t.Fatalf("expected panic to surface as error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("panic not reported")
	}
}

func TestShutdown_WaitsForInflight(t *testing.T) {
	r := NewRegistry(0)

	done := make(chan struct{})
	r.Go("slow", func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		close(done)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatalf("shutdown returned before the task finished")
	}

	if ok := r.Go("late", func(ctx context.Context) error { return nil }); ok {
		t.Fatalf("expected tasks to be rejected after shutdown")
	}
}

func TestShutdown_RespectsDeadline(t *testing.T) {
	r := NewRegistry(0)

	r.Go("stuck", func(ctx context.Context) error {
		time.Sleep(5 * time.Second)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Shutdown(ctx); err == nil {
		t.Fatalf("expected deadline error from shutdown")
	}
}
