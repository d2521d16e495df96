package stream

import (
	"context"
	"log"
	"sync"
	"time"
)

// Options configure the process-wide broker handle.
type Options struct {
	// RedisAddr empty means no durable backend: fall back to the
	// in-memory broker.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Retention     time.Duration
}

var (
	globalOnce   sync.Once
	globalBroker Broker
)

// Context returns the process-wide broker, initializing it on first
// use. Initialization runs at most once even under concurrent callers;
// if the durable backend is unreachable the handle degrades to the
// in-memory broker rather than failing.
func Context(opts Options) Broker {
	globalOnce.Do(func() {
		if opts.RedisAddr == "" {
			log.Printf("[stream] resumable streams disabled: REDIS_ADDR not set")
			globalBroker = NewMemoryBroker()
			return
		}
		b, err := NewRedisBroker(context.Background(), opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.Retention)
		if err != nil {
			log.Printf("[stream] redis unavailable, falling back to in-memory streams: %v", err)
			globalBroker = NewMemoryBroker()
			return
		}
		globalBroker = b
	})
	return globalBroker
}

// ShutdownGlobal tears down the process-wide broker if it was created.
func ShutdownGlobal(ctx context.Context) {
	if globalBroker != nil {
		if err := globalBroker.Shutdown(ctx); err != nil {
			log.Printf("[stream] shutdown: %v", err)
		}
	}
}
