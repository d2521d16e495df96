package stream

import (
	"context"
	"errors"
)

// ErrUnknownStream is returned when subscribing to a key that has no
// live production and no buffered tail.
var ErrUnknownStream = errors.New("stream: unknown stream key")

// Producer is the write side of one stream key. Writes are strictly
// ordered; Close appends the end-of-stream marker consumers stop on.
type Producer interface {
	// Write assigns the next sequence number and delivers the frame to
	// the buffer and all attached consumers.
	Write(ctx context.Context, f Frame) error
	Close(ctx context.Context) error
}

// Broker decouples turn-event production from delivery to a possibly
// reconnecting client.
type Broker interface {
	// NewProducer starts a production for the given key.
	NewProducer(ctx context.Context, key string) (Producer, error)

	// Subscribe attaches to a stream key, delivering buffered frames
	// with Seq > afterSeq and then live frames until the stream ends or
	// ctx is cancelled. The returned channel is closed on stream end.
	// If the production already finished, the buffered tail is replayed
	// and the channel closes.
	Subscribe(ctx context.Context, key string, afterSeq int64) (<-chan Frame, error)

	// Resumable reports whether a disconnected client can reattach.
	// Non-resumable brokers pass frames through; a disconnect loses the
	// remainder of the turn.
	Resumable() bool

	Shutdown(ctx context.Context) error
}
