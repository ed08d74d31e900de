package queue

import (
	"context"
	"testing"
	"time"

	"github.com/example/atomsched/pkg/atomerr"
)

func TestPushPopPriorityOrder(t *testing.T) {
	q := New(0)
	mustPush(t, q, Item{TaskID: "low", Priority: 1, Seq: 1})
	mustPush(t, q, Item{TaskID: "high", Priority: 9, Seq: 2})
	mustPush(t, q, Item{TaskID: "mid", Priority: 5, Seq: 3})

	ctx := context.Background()
	order := []string{}
	for i := 0; i < 3; i++ {
		item, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		order = append(order, item.TaskID)
	}
	want := []string{"high", "mid", "low"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestFIFOTieBreak(t *testing.T) {
	q := New(0)
	mustPush(t, q, Item{TaskID: "first", Priority: 5, Seq: 1})
	mustPush(t, q, Item{TaskID: "second", Priority: 5, Seq: 2})

	ctx := context.Background()
	a, _ := q.Pop(ctx)
	b, _ := q.Pop(ctx)
	if a.TaskID != "first" || b.TaskID != "second" {
		t.Errorf("equal-priority items should pop in submission order, got %s then %s", a.TaskID, b.TaskID)
	}
}

func TestQueueFull(t *testing.T) {
	q := New(1)
	mustPush(t, q, Item{TaskID: "a", Seq: 1})
	err := q.Push(Item{TaskID: "b", Seq: 2})
	if atomerr.KindOf(err) != atomerr.KindQueueFull {
		t.Errorf("KindOf() = %v, want KindQueueFull", atomerr.KindOf(err))
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New(0)
	done := make(chan Item, 1)
	go func() {
		item, err := q.Pop(context.Background())
		if err == nil {
			done <- item
		}
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before any item was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	mustPush(t, q, Item{TaskID: "late", Seq: 1})

	select {
	case item := <-done:
		if item.TaskID != "late" {
			t.Errorf("got %s, want late", item.TaskID)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after push")
	}
}

func TestPopRespectsContextCancellation(t *testing.T) {
	q := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Pop(ctx)
	if err == nil {
		t.Fatal("expected Pop to return an error for a cancelled context")
	}
}

func TestRemove(t *testing.T) {
	q := New(0)
	mustPush(t, q, Item{TaskID: "a", Seq: 1})
	if !q.Remove("a") {
		t.Error("Remove(a) should report true")
	}
	if q.Remove("a") {
		t.Error("Remove(a) a second time should report false")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestDrain(t *testing.T) {
	q := New(0)
	mustPush(t, q, Item{TaskID: "a", Seq: 1})
	mustPush(t, q, Item{TaskID: "b", Seq: 2})
	drained := q.Drain()
	if len(drained) != 2 {
		t.Fatalf("Drain() returned %d items, want 2", len(drained))
	}
	if q.Len() != 0 {
		t.Errorf("queue should be empty after Drain, Len() = %d", q.Len())
	}
}

func mustPush(t *testing.T, q *Queue, item Item) {
	t.Helper()
	if err := q.Push(item); err != nil {
		t.Fatalf("Push(%v): %v", item, err)
	}
}
