package engine

import (
	"testing"
)

func TestQueuePushAndReceive(t *testing.T) {
	q := NewQueue(4, nil)
	q.Push(Update{Type: "crafting_update", Data: "a"})

	u := <-q.Updates()
	if u.Type != "crafting_update" {
		t.Fatalf("type = %q", u.Type)
	}
	if u.ID == "" {
		t.Fatalf("expected generated id")
	}
	if u.Timestamp == 0 {
		t.Fatalf("expected generated timestamp")
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2, nil)
	q.Push(Update{Type: "first"})
	q.Push(Update{Type: "second"})
	q.Push(Update{Type: "third"}) // displaces "first"

	if got := q.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
	if u := <-q.Updates(); u.Type != "second" {
		t.Fatalf("head = %q, want second", u.Type)
	}
	if u := <-q.Updates(); u.Type != "third" {
		t.Fatalf("next = %q, want third", u.Type)
	}
}

func TestQueuePushNeverBlocks(t *testing.T) {
	q := NewQueue(1, nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.Push(Update{Type: "burst"})
		}
		close(done)
	}()
	<-done
	if q.Dropped() != 99 {
		t.Fatalf("dropped = %d, want 99", q.Dropped())
	}
}
