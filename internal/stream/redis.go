package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// frameStreamEnd is the internal end-of-stream sentinel published on
// the pub/sub channel; it is never delivered to consumers.
const frameStreamEnd = "stream-end"

// redisBroker buffers each stream as a bounded Redis list of
// sequence-numbered frames and fans out live frames over pub/sub, so a
// reconnecting client can replay the tail and attach with no gaps or
// duplicates, even from another process.
type redisBroker struct {
	rdb       *redis.Client
	retention time.Duration
}

func NewRedisBroker(ctx context.Context, addr, password string, db int, retention time.Duration) (Broker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &redisBroker{rdb: rdb, retention: retention}, nil
}

func framesKey(key string) string  { return "chatloom:stream:" + key + ":frames" }
func seqKey(key string) string     { return "chatloom:stream:" + key + ":seq" }
func doneKey(key string) string    { return "chatloom:stream:" + key + ":done" }
func channelKey(key string) string { return "chatloom:stream:" + key }

func (b *redisBroker) NewProducer(ctx context.Context, key string) (Producer, error) {
	// Mark the key live before any frame exists so early subscribers do
	// not see it as unknown.
	if err := b.rdb.SetNX(ctx, seqKey(key), 0, b.retention).Err(); err != nil {
		return nil, fmt.Errorf("stream register %s: %w", key, err)
	}
	return &redisProducer{b: b, key: key}, nil
}

type redisProducer struct {
	b   *redisBroker
	key string
}

func (p *redisProducer) Write(ctx context.Context, f Frame) error {
	seq, err := p.b.rdb.Incr(ctx, seqKey(p.key)).Result()
	if err != nil {
		return fmt.Errorf("stream seq %s: %w", p.key, err)
	}
	f.Seq = seq
	payload := f.EncodeJSON()

	pipe := p.b.rdb.Pipeline()
	pipe.RPush(ctx, framesKey(p.key), payload)
	pipe.LTrim(ctx, framesKey(p.key), -maxBufferedFrames, -1)
	pipe.Expire(ctx, framesKey(p.key), p.b.retention)
	pipe.Expire(ctx, seqKey(p.key), p.b.retention)
	pipe.Publish(ctx, channelKey(p.key), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stream write %s: %w", p.key, err)
	}
	return nil
}

func (p *redisProducer) Close(ctx context.Context) error {
	pipe := p.b.rdb.Pipeline()
	pipe.Set(ctx, doneKey(p.key), 1, p.b.retention)
	pipe.Publish(ctx, channelKey(p.key), Frame{Type: frameStreamEnd}.EncodeJSON())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stream close %s: %w", p.key, err)
	}
	return nil
}

func (b *redisBroker) Subscribe(ctx context.Context, key string, afterSeq int64) (<-chan Frame, error) {
	known, err := b.rdb.Exists(ctx, seqKey(key), framesKey(key), doneKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("stream lookup %s: %w", key, err)
	}
	if known == 0 {
		return nil, ErrUnknownStream
	}

	// Attach to live delivery before reading the buffer so no frame can
	// fall between replay and subscription.
	pubsub := b.rdb.Subscribe(ctx, channelKey(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("stream subscribe %s: %w", key, err)
	}

	buffered, err := b.rdb.LRange(ctx, framesKey(key), 0, -1).Result()
	if err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("stream replay %s: %w", key, err)
	}

	done, err := b.rdb.Exists(ctx, doneKey(key)).Result()
	if err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("stream lookup %s: %w", key, err)
	}

	out := make(chan Frame, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		lastSeq := afterSeq
		send := func(f Frame) bool {
			if f.Seq <= lastSeq {
				return true // duplicate of an already-delivered frame
			}
			select {
			case out <- f:
				lastSeq = f.Seq
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, raw := range buffered {
			var f Frame
			if err := json.Unmarshal([]byte(raw), &f); err != nil {
				continue
			}
			if !send(f) {
				return
			}
		}
		if done > 0 {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var f Frame
				if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
					continue
				}
				if f.Type == frameStreamEnd {
					return
				}
				if !send(f) {
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *redisBroker) Resumable() bool { return true }

func (b *redisBroker) Shutdown(ctx context.Context) error {
	return b.rdb.Close()
}
