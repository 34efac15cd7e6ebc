package reconcile

import "sync"

// Queue hands batches from transport goroutines to the goroutine that owns
// the scene. Enqueue may be called from anywhere; Drain only from the owner.
type Queue struct {
	mu      sync.Mutex
	pending []Batch
	ready   chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Enqueue stores b and wakes the owner.
func (q *Queue) Enqueue(b Batch) {
	q.mu.Lock()
	q.pending = append(q.pending, b)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready receives a value whenever batches may be waiting.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain applies every waiting batch in arrival order. Each batch is merged
// completely before the next one starts.
func (q *Queue) Drain(r *Reconciler) []Result {
	q.mu.Lock()
	batches := q.pending
	q.pending = nil
	q.mu.Unlock()

	results := make([]Result, 0, len(batches))
	for _, b := range batches {
		results = append(results, r.Apply(b))
	}
	return results
}
