package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/maildispatch/email"
)

func newItem(to string, priority int) *Item {
	item, _ := NewItem(email.Message{To: to}, "fp-"+to, priority, time.Now())
	return item
}

func TestQueue_PriorityThenArrival(t *testing.T) {
	q := New(Config{})

	first := newItem("first", 1)
	high := newItem("high", 5)
	second := newItem("second", 1)
	for _, it := range []*Item{first, high, second} {
		if err := q.Enqueue(it); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	want := []*Item{high, first, second}
	for i, w := range want {
		got, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Dequeue() #%d reported empty", i)
		}
		if got != w {
			t.Errorf("Dequeue() #%d = %s, want %s", i, got.Message.To, w.Message.To)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue() on empty queue should report false")
	}
}

func TestQueue_StableAmongEqualPriorities(t *testing.T) {
	q := New(Config{})

	var order []string
	for i := 0; i < 50; i++ {
		to := string(rune('A' + i%26)) + string(rune('a'+i/26))
		order = append(order, to)
		_ = q.Enqueue(newItem(to, 0))
	}

	for i, want := range order {
		got, _ := q.Dequeue()
		if got.Message.To != want {
			t.Fatalf("Dequeue() #%d = %s, want %s", i, got.Message.To, want)
		}
	}
}

func TestQueue_NegativePriority(t *testing.T) {
	q := New(Config{})
	_ = q.Enqueue(newItem("low", -1))
	_ = q.Enqueue(newItem("default", 0))

	got, _ := q.Dequeue()
	if got.Message.To != "default" {
		t.Errorf("Dequeue() = %s, want default", got.Message.To)
	}
}

func TestQueue_MaxDepth(t *testing.T) {
	q := New(Config{MaxDepth: 2})

	_ = q.Enqueue(newItem("a", 0))
	_ = q.Enqueue(newItem("b", 0))
	if err := q.Enqueue(newItem("c", 0)); err != ErrFull {
		t.Errorf("Enqueue() at capacity = %v, want ErrFull", err)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}

	q.Dequeue()
	if err := q.Enqueue(newItem("c", 0)); err != nil {
		t.Errorf("Enqueue() after Dequeue = %v", err)
	}
}

func TestQueue_EnqueueNil(t *testing.T) {
	q := New(Config{})
	if err := q.Enqueue(nil); err != ErrNilItem {
		t.Errorf("Enqueue(nil) = %v, want ErrNilItem", err)
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New(Config{})
	_ = q.Enqueue(newItem("a", 0))
	_ = q.Enqueue(newItem("b", 3))

	items := q.Drain()
	if len(items) != 2 || items[0].Message.To != "b" || items[1].Message.To != "a" {
		t.Errorf("Drain() returned wrong order")
	}
	if q.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", q.Len())
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = q.Enqueue(newItem("x", p))
			}
		}(i % 4)
	}
	wg.Wait()

	if q.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", q.Len())
	}

	last := 1 << 30
	for {
		it, ok := q.Dequeue()
		if !ok {
			break
		}
		if it.Priority > last {
			t.Fatalf("priority %d dequeued after %d", it.Priority, last)
		}
		last = it.Priority
	}
}
