package stream

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func collect(t *testing.T, ch <-chan Frame, want int) []Frame {
	t.Helper()
	var out []Frame
	deadline := time.After(2 * time.Second)
	for len(out) < want {
		select {
		case f, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, f)
		case <-deadline:
			t.Fatalf("timed out waiting for frames, got %d of %d", len(out), want)
		}
	}
	return out
}

func waitClosed(t *testing.T, ch <-chan Frame) {
	t.Helper()
	select {
	case f, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel, got frame %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel did not close")
	}
}

func TestMemoryBroker_OrderedDelivery(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	p, err := b.NewProducer(ctx, "s1")
	if err != nil {
		t.Fatalf("producer: %v", err)
	}
	sub, err := b.Subscribe(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := p.Write(ctx, Frame{Type: FrameTextDelta, Delta: fmt.Sprintf("d%d", i)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	frames := collect(t, sub, 5)
	for i, f := range frames {
		if f.Seq != int64(i+1) {
			t.Fatalf("frame %d: expected seq %d, got %d", i, i+1, f.Seq)
		}
		if f.Delta != fmt.Sprintf("d%d", i) {
			t.Fatalf("frame %d out of order: %q", i, f.Delta)
		}
	}
	waitClosed(t, sub)
}

func TestMemoryBroker_ResumeAfterSeq(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	p, _ := b.NewProducer(ctx, "s1")
	for i := 0; i < 4; i++ {
		if err := p.Write(ctx, Frame{Type: FrameTextDelta, Delta: fmt.Sprintf("d%d", i)}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// late subscriber skipping the first two frames
	sub, err := b.Subscribe(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// live frame after attach
	if err := p.Write(ctx, Frame{Type: FrameFinish}); err != nil {
		t.Fatalf("write finish: %v", err)
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	frames := collect(t, sub, 3)
	if frames[0].Seq != 3 || frames[0].Delta != "d2" {
		t.Fatalf("expected replay to start at seq 3, got %+v", frames[0])
	}
	if frames[2].Type != FrameFinish || frames[2].Seq != 5 {
		t.Fatalf("expected live finish frame at seq 5, got %+v", frames[2])
	}
	waitClosed(t, sub)
}

func TestMemoryBroker_ReplayAfterClose(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	p, _ := b.NewProducer(ctx, "s1")
	_ = p.Write(ctx, Frame{Type: FrameTextDelta, Delta: "only"})
	_ = p.Close(ctx)

	sub, err := b.Subscribe(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("subscribe after close: %v", err)
	}
	frames := collect(t, sub, 1)
	if frames[0].Delta != "only" {
		t.Fatalf("unexpected replay: %+v", frames[0])
	}
	waitClosed(t, sub)
}

func TestMemoryBroker_UnknownKey(t *testing.T) {
	b := NewMemoryBroker()
	if _, err := b.Subscribe(context.Background(), "nope", 0); err != ErrUnknownStream {
		t.Fatalf("expected ErrUnknownStream, got %v", err)
	}
}

func TestMemoryBroker_SubscriberCancel(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())

	p, _ := b.NewProducer(context.Background(), "s1")
	sub, err := b.Subscribe(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cancel()
	waitClosed(t, sub)

	// producer unaffected by a departed subscriber
	if err := p.Write(context.Background(), Frame{Type: FrameTextDelta, Delta: "x"}); err != nil {
		t.Fatalf("write after cancel: %v", err)
	}
}

func TestMemoryBroker_MultipleSubscribersSeeSameOrder(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	p, _ := b.NewProducer(ctx, "s1")
	s1, _ := b.Subscribe(ctx, "s1", 0)
	s2, _ := b.Subscribe(ctx, "s1", 0)

	for i := 0; i < 3; i++ {
		_ = p.Write(ctx, Frame{Type: FrameTextDelta, Delta: fmt.Sprintf("d%d", i)})
	}
	_ = p.Close(ctx)

	a := collect(t, s1, 3)
	bf := collect(t, s2, 3)
	for i := range a {
		if a[i].Seq != bf[i].Seq || a[i].Delta != bf[i].Delta {
			t.Fatalf("subscribers diverged at %d: %+v vs %+v", i, a[i], bf[i])
		}
	}
}
