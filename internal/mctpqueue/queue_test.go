package mctpqueue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTryPushRespectsCapacity(t *testing.T) {
	q := New[int](2)
	if !q.TryPush(1) {
		t.Fatal("expected first push to succeed")
	}
	if !q.TryPush(2) {
		t.Fatal("expected second push to succeed")
	}
	if q.TryPush(3) {
		t.Fatal("expected push beyond capacity to fail")
	}
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
}

func TestPopFIFOOrder(t *testing.T) {
	q := New[int](4)
	for _, v := range []int{1, 2, 3} {
		q.TryPush(v)
	}
	for _, want := range []int{1, 2, 3} {
		got, ok := q.TryPop()
		if !ok || got != want {
			t.Fatalf("expected %d, got %d (ok=%v)", want, got, ok)
		}
	}
}

func TestTryPopOnEmptyDoesNotBlock(t *testing.T) {
	q := New[int](1)
	if _, ok := q.TryPop(); ok {
		t.Fatal("expected TryPop on empty queue to return ok=false")
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New[int](1)
	done := make(chan int, 1)
	go func() {
		v, ok := q.Pop(context.Background())
		if ok {
			done <- v
		} else {
			done <- -1
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.TryPush(42)

	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after push")
	}
}

func TestShutdownWakesAllWaiters(t *testing.T) {
	q := New[int](1)
	const waiters = 8
	var wg sync.WaitGroup
	results := make([]bool, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, ok := q.Pop(context.Background())
			results[idx] = ok
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	q.Shutdown()

	waitTimeout(t, &wg, time.Second)

	for i, ok := range results {
		if ok {
			t.Errorf("waiter %d expected ok=false after shutdown", i)
		}
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	q := New[int](1)
	q.Shutdown()
	q.Shutdown() // must not panic or deadlock
	if _, ok := q.Pop(context.Background()); ok {
		t.Fatal("expected Pop on shut-down queue to return ok=false")
	}
}

func TestPopRespectsContextCancellation(t *testing.T) {
	q := New[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := q.Pop(ctx)
	if ok {
		t.Fatal("expected Pop to fail after context deadline")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Pop took too long to respect cancellation: %v", elapsed)
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for goroutines")
	}
}
