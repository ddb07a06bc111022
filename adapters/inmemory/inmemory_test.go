package inmemory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/next-trace/scg-projector/adapters/inmemory"
	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

type evt struct{ N int }

func TestInmemory_PublishAndConsume_InOrder(t *testing.T) {
	src := inmemory.New(0)

	if err := src.Publish(t.Context(), evt{N: 1}, evt{N: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := src.Publish(t.Context()); err != nil {
		t.Fatalf("publish empty: %v", err)
	}

	if err := src.Publish(t.Context(), evt{N: 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	src.Close()

	var batches [][]projection.Message

	err := src.Consume(t.Context(), func(ctx context.Context, msgs []projection.Message) error {
		batches = append(batches, msgs)
		return nil
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if len(batches) != 3 {
		t.Fatalf("want 3 batches, got %d", len(batches))
	}

	if len(batches[0]) != 2 || batches[0][1].(evt).N != 2 {
		t.Fatalf("batch 0: %+v", batches[0])
	}

	if batches[1] == nil || len(batches[1]) != 0 {
		t.Fatalf("empty batch must be delivered as a non-nil empty slice: %#v", batches[1])
	}

	if src.Delivered() != 3 {
		t.Fatalf("delivered=%d", src.Delivered())
	}
}

func TestInmemory_SinkErrorStopsConsume(t *testing.T) {
	src := inmemory.New(4)
	_ = src.Publish(t.Context(), evt{N: 1})
	_ = src.Publish(t.Context(), evt{N: 2})

	boom := errors.New("boom")
	calls := 0

	err := src.Consume(t.Context(), func(context.Context, []projection.Message) error {
		calls++
		return boom
	})
	if err != boom { //nolint:errorlint // identity is the contract
		t.Fatalf("want boom, got %v", err)
	}

	if calls != 1 || src.Delivered() != 0 {
		t.Fatalf("calls=%d delivered=%d", calls, src.Delivered())
	}
}

func TestInmemory_ClosedAndCancelled(t *testing.T) {
	src := inmemory.New(1)
	src.Close()
	src.Close() // idempotent

	if err := src.Publish(t.Context(), evt{}); !errors.Is(err, perr.ErrSourceClosed) {
		t.Fatalf("want ErrSourceClosed, got %v", err)
	}

	open := inmemory.New(1)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := open.Consume(ctx, func(context.Context, []projection.Message) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	_ = open.Publish(t.Context(), evt{}) // fills the buffer

	if err := open.Publish(ctx, evt{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled on full buffer, got %v", err)
	}
}

func TestInmemory_ConcurrentPublishers(t *testing.T) {
	src := inmemory.New(8)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			_ = src.Publish(t.Context(), evt{N: n})
		}(i)
	}

	done := make(chan error, 1)
	seen := 0

	go func() {
		done <- src.Consume(t.Context(), func(context.Context, []projection.Message) error {
			seen++
			return nil
		})
	}()

	wg.Wait()
	src.Close()

	if err := <-done; err != nil {
		t.Fatalf("consume: %v", err)
	}

	if seen != 50 || src.Delivered() != 50 {
		t.Fatalf("seen=%d delivered=%d", seen, src.Delivered())
	}
}

func TestInmemory_CloseReleasesBlockedPublisher(t *testing.T) {
	src := inmemory.New(1)
	_ = src.Publish(t.Context(), evt{N: 1}) // fills the buffer

	published := make(chan error, 2)

	for n := 2; n <= 3; n++ {
		go func() { published <- src.Publish(context.Background(), evt{N: n}) }()
	}

	// the sink fails on the first batch; one publisher refills the buffer, the other stays blocked
	boom := errors.New("boom")

	err := src.Consume(t.Context(), func(context.Context, []projection.Message) error { return boom })
	if err != boom { //nolint:errorlint // identity is the contract
		t.Fatalf("want boom, got %v", err)
	}

	closed := make(chan struct{})

	go func() {
		src.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatalf("Close blocked behind a pending Publish")
	}

	var ok, rejected int

	for range 2 {
		select {
		case err := <-published:
			switch {
			case err == nil:
				ok++
			case errors.Is(err, perr.ErrSourceClosed):
				rejected++
			default:
				t.Fatalf("publish: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("blocked publisher was not released by Close")
		}
	}

	if ok != 1 || rejected != 1 {
		t.Fatalf("ok=%d rejected=%d", ok, rejected)
	}
}
