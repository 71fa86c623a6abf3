package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/scout/internal/domain/model"
)

func batch(id string) model.Batch {
	return model.Batch{
		ID:         id,
		Source:     "test",
		Postings:   []model.Posting{{Source: "test", ExternalID: id, Title: "t", Company: "c"}},
		ReceivedAt: time.Now(),
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}

	if !q.Enqueue(ctx, batch("b1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "b1" || len(got.Postings) != 1 {
		t.Errorf("unexpected batch %+v", got)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, batch("b1")) || !q.Enqueue(ctx, batch("b2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, batch("b3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, batch("b1"))
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if q.Enqueue(ctx, batch("b2")) {
		t.Error("expected enqueue to fail after close")
	}

	var ids []string
	for b := range q.Dequeue(ctx) {
		ids = append(ids, b.ID)
	}
	if len(ids) != 1 || ids[0] != "b1" {
		t.Errorf("expected queued batch to drain after close, got %v", ids)
	}
}

func TestInMemoryQueue_CancelledDequeue(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected no batch after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue channel not closed after cancel")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if !q.Enqueue(ctx, batch(fmt.Sprintf("b-%d-%d", id, j))) {
					t.Errorf("enqueue %d-%d failed", id, j)
				}
			}
		}(i)
	}
	wg.Wait()

	if l := q.Len(ctx); l != 100 {
		t.Fatalf("expected 100 batches, got %d", l)
	}

	seen := make(map[string]bool)
	ch := q.Dequeue(ctx)
	for i := 0; i < 100; i++ {
		b := <-ch
		if seen[b.ID] {
			t.Errorf("batch %s delivered twice", b.ID)
		}
		seen[b.ID] = true
	}
}
