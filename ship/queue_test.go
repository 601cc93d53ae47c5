package ship

import "testing"

func TestIndexQueueFIFO(t *testing.T) {
	var q IndexQueue
	for _, v := range []int{5, 3, 9} {
		if !q.Push(v) {
			t.Fatalf("Push(%d) rejected", v)
		}
	}
	for _, want := range []int{5, 3, 9} {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("Pop = %d,%v, want %d", got, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on empty queue should fail")
	}
}

func TestIndexQueueDedup(t *testing.T) {
	var q IndexQueue
	q.Push(7)
	if q.Push(7) {
		t.Error("duplicate push should be a no-op")
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}

	// Once popped, the id may be queued again.
	q.Pop()
	if !q.Push(7) {
		t.Error("push after pop should succeed")
	}
}

func TestIndexQueueContains(t *testing.T) {
	var q IndexQueue
	q.Push(1)
	q.Push(2)
	if !q.Contains(1) || !q.Contains(2) || q.Contains(3) {
		t.Error("Contains mismatch")
	}
	q.Pop()
	if q.Contains(1) {
		t.Error("popped id should not be contained")
	}
	q.Clear()
	if q.Contains(2) || q.Len() != 0 {
		t.Error("Clear should drop membership")
	}
}

func TestIndexQueueCompaction(t *testing.T) {
	var q IndexQueue
	for i := 0; i < 1000; i++ {
		q.Push(i)
	}
	for i := 0; i < 900; i++ {
		got, ok := q.Pop()
		if !ok || got != i {
			t.Fatalf("Pop = %d,%v, want %d", got, ok, i)
		}
	}
	// Order survives internal compaction.
	for i := 900; i < 1000; i++ {
		got, ok := q.Pop()
		if !ok || got != i {
			t.Fatalf("Pop = %d,%v, want %d", got, ok, i)
		}
	}
}
