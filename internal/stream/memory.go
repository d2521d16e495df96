package stream

import (
	"context"
	"sync"
)

// maxBufferedFrames bounds per-stream retention in both backends.
const maxBufferedFrames = 4096

// memBroker keeps streams in process memory. It is the fallback when
// no Redis address is configured or the broker ping fails at startup:
// reattachment still works within this process, but nothing survives a
// restart, which is the accepted degradation.
type memBroker struct {
	mu      sync.Mutex
	streams map[string]*memStream
}

func NewMemoryBroker() Broker {
	return &memBroker{streams: make(map[string]*memStream)}
}

type memStream struct {
	mu      sync.Mutex
	frames  []Frame
	baseSeq int64 // seq of frames[0] minus one; frames are contiguous
	lastSeq int64
	done    bool
	updated chan struct{}
}

func newMemStream() *memStream {
	return &memStream{updated: make(chan struct{})}
}

func (s *memStream) append(f Frame) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeq++
	f.Seq = s.lastSeq
	s.frames = append(s.frames, f)
	if len(s.frames) > maxBufferedFrames {
		drop := len(s.frames) - maxBufferedFrames
		s.frames = s.frames[drop:]
		s.baseSeq += int64(drop)
	}
	s.broadcast()
	return f.Seq
}

func (s *memStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.broadcast()
}

// broadcast wakes all waiting subscribers. Caller holds s.mu.
func (s *memStream) broadcast() {
	close(s.updated)
	s.updated = make(chan struct{})
}

func (b *memBroker) get(key string) *memStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streams[key]
}

func (b *memBroker) NewProducer(ctx context.Context, key string) (Producer, error) {
	b.mu.Lock()
	s, ok := b.streams[key]
	if !ok {
		s = newMemStream()
		b.streams[key] = s
	}
	b.mu.Unlock()
	return &memProducer{s: s}, nil
}

type memProducer struct {
	s *memStream
}

func (p *memProducer) Write(ctx context.Context, f Frame) error {
	p.s.append(f)
	return nil
}

func (p *memProducer) Close(ctx context.Context) error {
	p.s.close()
	return nil
}

func (b *memBroker) Subscribe(ctx context.Context, key string, afterSeq int64) (<-chan Frame, error) {
	s := b.get(key)
	if s == nil {
		return nil, ErrUnknownStream
	}

	out := make(chan Frame, 16)
	go func() {
		defer close(out)
		next := afterSeq + 1
		for {
			s.mu.Lock()
			if next <= s.baseSeq {
				// Trimmed tail: resume from the oldest retained frame.
				next = s.baseSeq + 1
			}
			var pendingCopy []Frame
			if idx := next - s.baseSeq - 1; idx < int64(len(s.frames)) {
				pendingCopy = append(pendingCopy, s.frames[idx:]...)
			}
			done := s.done
			updated := s.updated
			s.mu.Unlock()

			for _, f := range pendingCopy {
				select {
				case out <- f:
					next = f.Seq + 1
				case <-ctx.Done():
					return
				}
			}
			if done {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-updated:
			}
		}
	}()
	return out, nil
}

func (b *memBroker) Resumable() bool { return false }

func (b *memBroker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.streams {
		s.close()
	}
	b.streams = make(map[string]*memStream)
	return nil
}
