// Package ship implements the incremental constraint solver for one ship
// structure: a chunked block grid, per-cell admissible node sets, and the
// three-stage reset/propagate/collapse pipeline that keeps the resolved node
// lattice consistent with block edits under a per-tick work budget.
package ship

// IndexQueue is a FIFO over world node indices with O(1) membership testing.
// Pushing an index that is already queued is a no-op, so a cell is processed
// at most once per round no matter how many neighbors destabilize it.
type IndexQueue struct {
	items  []int
	head   int
	member map[int]struct{}
}

// Push appends an index unless it is already queued. Reports whether the
// index was added.
func (q *IndexQueue) Push(id int) bool {
	if q.member == nil {
		q.member = make(map[int]struct{})
	}
	if _, ok := q.member[id]; ok {
		return false
	}
	q.member[id] = struct{}{}
	q.items = append(q.items, id)
	return true
}

// Pop removes and returns the oldest index.
func (q *IndexQueue) Pop() (int, bool) {
	if q.head >= len(q.items) {
		return 0, false
	}
	id := q.items[q.head]
	q.head++
	delete(q.member, id)

	// Reclaim the drained prefix once it dominates the backing array.
	if q.head > 64 && q.head*2 >= len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return id, true
}

// Contains reports whether the index is currently queued.
func (q *IndexQueue) Contains(id int) bool {
	_, ok := q.member[id]
	return ok
}

// Len returns the number of queued indices.
func (q *IndexQueue) Len() int {
	return len(q.items) - q.head
}

// Empty reports whether no work is queued.
func (q *IndexQueue) Empty() bool {
	return q.Len() == 0
}

// Clear drops all queued indices.
func (q *IndexQueue) Clear() {
	q.items = q.items[:0]
	q.head = 0
	clear(q.member)
}
