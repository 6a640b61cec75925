package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTrackerIncDec(t *testing.T) {
	t.Parallel()

	tr := &Tracker{}
	tr.Inc()
	if got := tr.Running(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	tr.Dec()
	if got := tr.Running(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := tr.Total(); got != 1 {
		t.Fatalf("expected total 1, got %d", got)
	}
}

func TestTrackerConcurrent(t *testing.T) {
	t.Parallel()

	tr := &Tracker{}
	const goroutines = 10
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				tr.Inc()
				tr.Dec()
			}
		}()
	}
	wg.Wait()

	if got := tr.Running(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := tr.Total(); got != goroutines*iterations {
		t.Fatalf("expected total %d, got %d", goroutines*iterations, got)
	}
}

func TestTrackerDrain(t *testing.T) {
	t.Parallel()

	tr := &Tracker{}
	if err := tr.Drain(context.Background()); err != nil {
		t.Fatalf("drain idle tracker: %v", err)
	}

	tr.Inc()
	go func() {
		time.Sleep(20 * time.Millisecond)
		tr.Dec()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.Drain(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTrackerDrain_Deadline(t *testing.T) {
	t.Parallel()

	tr := &Tracker{}
	tr.Inc()
	defer tr.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tr.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
