package planner

import (
	"container/heap"
	"sync"

	"github.com/google/uuid"
)

// Candidate is one task competing for a planner slot, carrying the
// score it was ranked with at enqueue time.
type Candidate struct {
	TaskID uuid.UUID
	Client string
	Score  float64
	Effort float64
}

// candidateHeap implements heap.Interface over Candidate, ordered by
// descending score with a deterministic tie-break on TaskID so two
// runs over the same input always walk candidates in the same order.
// Staleness is already folded into Score by Plan before a candidate is
// pushed, so the queue itself needs no time-based adjustment in Less().
type candidateHeap []*Candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].TaskID.String() < h[j].TaskID.String()
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x interface{}) {
	*h = append(*h, x.(*Candidate))
}

func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}

// Queue is a thread-safe max-heap of Candidates, used by the planner to
// walk tasks in score order while packing them against remaining
// capacity.
type Queue struct {
	mu sync.Mutex
	h  candidateHeap
}

// NewQueue builds an empty queue.
func NewQueue() *Queue {
	return &Queue{h: make(candidateHeap, 0)}
}

// Push inserts a candidate.
func (q *Queue) Push(c *Candidate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, c)
}

// Pop removes and returns the highest-scored candidate, or nil if empty.
func (q *Queue) Pop() *Candidate {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*Candidate)
}

// Len reports the number of queued candidates.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}
