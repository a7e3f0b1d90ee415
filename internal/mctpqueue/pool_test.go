package mctpqueue

import (
	"context"
	"testing"
)

type poolElem struct {
	id int
}

func TestPoolSeededAtCapacity(t *testing.T) {
	next := 0
	p := NewPool[*poolElem](4, func() *poolElem {
		next++
		return &poolElem{id: next}
	})
	if p.Len() != 4 {
		t.Fatalf("expected pool seeded with 4 elements, got %d", p.Len())
	}
}

func TestPoolGetPutRoundTrip(t *testing.T) {
	// A single-element pool, so the next Get after Put must hand back the
	// same element (the free list is FIFO: with more seeded elements the
	// next Get would return a different one).
	p := NewPool[*poolElem](1, func() *poolElem { return &poolElem{} })

	e1, ok := p.Get(context.Background())
	if !ok {
		t.Fatal("expected Get to succeed")
	}
	e1.id = 7
	if !p.Put(e1) {
		t.Fatal("expected Put to succeed")
	}

	e2, ok := p.Get(context.Background())
	if !ok {
		t.Fatal("expected Get to succeed after Put")
	}
	if e2.id != 7 {
		t.Errorf("expected reused element to retain its value until reset, got %d", e2.id)
	}
}

func TestPoolExhaustionBlocksThenShutdownUnblocks(t *testing.T) {
	p := NewPool[*poolElem](1, func() *poolElem { return &poolElem{} })

	first, ok := p.Get(context.Background())
	if !ok || first == nil {
		t.Fatal("expected to acquire the only element")
	}

	done := make(chan bool, 1)
	go func() {
		_, ok := p.Get(context.Background())
		done <- ok
	}()

	p.Shutdown()
	if ok := <-done; ok {
		t.Error("expected blocked Get to fail after Shutdown")
	}
}
