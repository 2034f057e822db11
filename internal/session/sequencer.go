package session

import "sync"

// sequencer runs work for the same key one at a time in the order acquire was
// called. Different keys do not wait on each other.
type sequencer struct {
	mu    sync.Mutex
	cond  *sync.Cond
	lanes map[string]*lane
}

// lane hands out tickets for one key. next is the ticket the following caller
// gets; serving is the ticket currently allowed to run.
type lane struct {
	next    uint64
	serving uint64
}

func newSequencer() *sequencer {
	q := &sequencer{lanes: make(map[string]*lane)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// acquire blocks until every earlier caller for key has released. The returned
// func releases the turn and must be called exactly once.
func (q *sequencer) acquire(key string) func() {
	q.mu.Lock()
	l, exists := q.lanes[key]
	if !exists {
		l = &lane{}
		q.lanes[key] = l
	}
	ticket := l.next
	l.next++
	for l.serving != ticket {
		q.cond.Wait()
	}
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			l.serving++
			if l.serving == l.next {
				delete(q.lanes, key)
			}
			q.mu.Unlock()
			q.cond.Broadcast()
		})
	}
}

// pending returns the number of keys with a caller running or waiting.
func (q *sequencer) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}
