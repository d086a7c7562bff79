package voice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerQueue_RunsTasksInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := newPeerQueue(ctx, "peer-1", 8, testLogger())
	defer q.Close()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		q.Submit(ctx, func() error {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
			return nil
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queue to drain")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPeerQueue_SubmitWaitReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := newPeerQueue(ctx, "peer-1", 8, testLogger())
	defer q.Close()

	err := q.SubmitWait(ctx, func() error { return ErrPeerNotFound })
	require.ErrorIs(t, err, ErrPeerNotFound)
}

func TestPeerQueue_CloseStopsAcceptingButDoesNotPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := newPeerQueue(ctx, "peer-1", 8, testLogger())
	q.Close()
	q.Close() // idempotent
}
