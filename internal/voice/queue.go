package voice

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// peerQueue serializes all signaling-affecting work for one peer onto a
// single goroutine, standing in for the single-threaded event-loop
// ordering guarantee the browser core relied on. Tasks run strictly FIFO;
// a task's error is logged and never aborts the queue.
type peerQueue struct {
	tasks  chan func() error
	log    zerolog.Logger
	peerID string

	closeOnce sync.Once
	done      chan struct{}
}

// newPeerQueue starts the drain goroutine and returns the queue. Depth
// bounds the number of tasks that may be enqueued ahead of the drain loop;
// Submit blocks once the buffer is full, applying backpressure to whatever
// enqueued the work rather than growing without bound.
func newPeerQueue(ctx context.Context, peerID string, depth int, log zerolog.Logger) *peerQueue {
	q := &peerQueue{
		tasks:  make(chan func() error, depth),
		log:    log.With().Str("component", "peer-queue").Str("peer", peerID).Logger(),
		peerID: peerID,
		done:   make(chan struct{}),
	}
	go q.run(ctx)
	return q
}

func (q *peerQueue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			if err := task(); err != nil {
				q.log.Warn().Err(err).Msg("peer queue task failed")
			}
		}
	}
}

// Submit enqueues a task. It blocks if the queue is full and the caller's
// context is not yet cancelled; it is a no-op once the queue is closed.
func (q *peerQueue) Submit(ctx context.Context, task func() error) {
	// A send on the tasks channel panics once Close has closed it; the
	// recover turns that case into a no-op.
	defer func() { _ = recover() }()
	select {
	case q.tasks <- task:
	case <-ctx.Done():
	case <-q.done:
	}
}

// SubmitWait enqueues a task and blocks until it has run, returning its
// error. Used where the caller needs the result (e.g. negotiation before
// replying over signaling).
func (q *peerQueue) SubmitWait(ctx context.Context, task func() error) error {
	result := make(chan error, 1)
	wrapped := func() error {
		err := task()
		result <- err
		return err
	}
	select {
	case q.tasks <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrPeerNotFound
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new tasks and lets the drain goroutine finish the
// tasks already buffered. Safe to call more than once.
func (q *peerQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.tasks)
	})
}
