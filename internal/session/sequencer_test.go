package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (q *sequencer) queued(key string) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[key]; ok {
		return l.next - l.serving
	}
	return 0
}

func TestSequencerRunsInCallOrder(t *testing.T) {
	q := newSequencer()
	release := q.acquire("a")

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 1; i <= 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := q.acquire("a")
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			done()
		}()
		// Wait until this caller holds a ticket before starting the next one.
		require.Eventually(t, func() bool {
			return q.queued("a") == uint64(i+1)
		}, time.Second, time.Millisecond)
	}

	release()
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3, 4, 5}, order)
	assert.Equal(t, 0, q.pending())
}

func TestSequencerKeysAreIndependent(t *testing.T) {
	q := newSequencer()
	releaseA := q.acquire("a")

	acquired := make(chan struct{})
	go func() {
		release := q.acquire("b")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("a held key blocked another key")
	}

	releaseA()
	assert.Equal(t, 0, q.pending())
}

func TestSequencerReleaseTwice(t *testing.T) {
	q := newSequencer()

	release := q.acquire("a")
	release()
	release()

	next := q.acquire("a")
	assert.Equal(t, uint64(1), q.queued("a"))
	next()
	assert.Equal(t, 0, q.pending())
}
