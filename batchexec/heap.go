// Package batchexec implements the batch executor and the batch queue
// heap: the executor turns a stream of compressed tuples into a stream of
// decompressed tuples with an optional bulk (arrow) path per column, and
// the heap performs a k-way merge of per-segment sorted batches into one
// globally ordered stream.
package batchexec

import (
	"container/heap"

	"github.com/tsdbcompress/columnar/errs"
)

// RowSource yields tuples the way rowcompress.TupleIterator does: (tuple,
// ok, err), ok false once the source is exhausted. *rowcompress.TupleIterator
// satisfies this directly.
type RowSource interface {
	Next() ([]any, bool, error)
}

// Less orders two tuples for the merge: true iff a sorts strictly before b.
type Less func(a, b []any) bool

type batchSlot struct {
	src      RowSource
	current  []any
	consumed bool
}

// heapAdapter lets BatchQueue's own exported Pop/Push coexist with
// container/heap.Interface's identically-named methods, by putting the
// latter on a distinct type that shares the queue's backing slice.
type heapAdapter struct {
	q *BatchQueue
}

func (h *heapAdapter) Len() int { return len(h.q.order) }

func (h *heapAdapter) Less(i, j int) bool {
	a := h.q.slots[h.q.order[i]].current
	b := h.q.slots[h.q.order[j]].current

	return h.q.less(a, b)
}

func (h *heapAdapter) Swap(i, j int) {
	h.q.order[i], h.q.order[j] = h.q.order[j], h.q.order[i]
}

func (h *heapAdapter) Push(x any) {
	h.q.order = append(h.q.order, x.(int)) //nolint:forcetypeassert // internal use only
}

func (h *heapAdapter) Pop() any {
	old := h.q.order
	n := len(old)
	item := old[n-1]
	h.q.order = old[:n-1]

	return item
}

// BatchQueue is a binary-heap-backed k-way merge over RowSources, rooted
// at whichever source's current row sorts least.
type BatchQueue struct {
	less      Less
	slots     []*batchSlot
	free      []int
	order     []int
	adapter   *heapAdapter
	lastAdded int
}

// NewBatchQueue returns an empty queue using less to order visible rows.
func NewBatchQueue(less Less) *BatchQueue {
	q := &BatchQueue{less: less, lastAdded: -1}
	q.adapter = &heapAdapter{q: q}

	return q
}

func (q *BatchQueue) allocSlot() int {
	if len(q.free) > 0 {
		idx := q.free[len(q.free)-1]
		q.free = q.free[:len(q.free)-1]

		return idx
	}

	q.slots = append(q.slots, nil)

	return len(q.slots) - 1
}

func (q *BatchQueue) freeSlot(idx int) {
	q.slots[idx] = nil
	q.free = append(q.free, idx)
}

// PushBatch advances src to its first row and, if one exists, admits it
// into the heap and remembers it as the last-added batch. If src yields
// no row at all, the queue is left unchanged.
func (q *BatchQueue) PushBatch(src RowSource) error {
	row, ok, err := src.Next()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	idx := q.allocSlot()
	q.slots[idx] = &batchSlot{src: src, current: row}
	heap.Push(q.adapter, idx)
	q.lastAdded = idx

	return nil
}

// Top returns the current row of the batch at the heap root.
func (q *BatchQueue) Top() ([]any, bool) {
	if len(q.order) == 0 {
		return nil, false
	}

	return q.slots[q.order[0]].current, true
}

// Pop advances the root batch by one row: if the batch
// is now exhausted it is removed from the heap and its slot freed;
// otherwise the heap is re-sifted with the batch's new current row.
func (q *BatchQueue) Pop() error {
	if len(q.order) == 0 {
		return errs.ErrEmptyHeap
	}

	rootIdx := q.order[0]
	slot := q.slots[rootIdx]
	slot.consumed = true

	row, ok, err := slot.src.Next()
	if err != nil {
		return err
	}

	if !ok {
		heap.Pop(q.adapter)
		q.freeSlot(rootIdx)

		return nil
	}

	slot.current = row
	heap.Fix(q.adapter, 0)

	return nil
}

func (q *BatchQueue) slot(idx int) (*batchSlot, bool) {
	if idx < 0 || idx >= len(q.slots) || q.slots[idx] == nil {
		return nil, false
	}

	return q.slots[idx], true
}

// NeedsNextBatch reports whether the caller must admit another batch
// before the heap root is trustworthy as the global minimum: the heap is
// empty, there is no valid
// last-added batch, the last-added batch has already had a row consumed
// (so its current minimum is stale), or the last-added batch's current
// row ties the heap root (a later batch could still tie or beat it).
func (q *BatchQueue) NeedsNextBatch() bool {
	if len(q.order) == 0 {
		return true
	}
	if q.lastAdded < 0 {
		return true
	}

	ls, ok := q.slot(q.lastAdded)
	if !ok {
		return true
	}
	if ls.consumed {
		return true
	}

	root := q.slots[q.order[0]].current

	return !q.less(ls.current, root) && !q.less(root, ls.current)
}

// Empty reports whether the heap currently holds no batches.
func (q *BatchQueue) Empty() bool { return len(q.order) == 0 }
