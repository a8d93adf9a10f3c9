package matchmaking

import (
	"container/list"
	"time"
)

// QueueEntry is a searcher waiting for a peer.
type QueueEntry struct {
	ConnectionID string
	Criteria     Criteria
	EnqueuedAt   time.Time

	// LastPeer is the partner this searcher just left with find_next. The
	// two are not paired again until one of them searches afresh.
	LastPeer string
}

// Queue holds searchers in arrival order. It is owned by the Hub and is not
// safe for concurrent use.
type Queue struct {
	order *list.List
	index map[string]*list.Element
}

func NewQueue() *Queue {
	return &Queue{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Enqueue appends entry to the back of the queue.
func (q *Queue) Enqueue(entry *QueueEntry) error {
	if _, exists := q.index[entry.ConnectionID]; exists {
		return ErrAlreadyQueued
	}
	q.index[entry.ConnectionID] = q.order.PushBack(entry)
	return nil
}

// Dequeue removes id from the queue. Removing an absent id is a no-op.
func (q *Queue) Dequeue(id string) bool {
	elem, ok := q.index[id]
	if !ok {
		return false
	}
	q.order.Remove(elem)
	delete(q.index, id)
	return true
}

// TryMatch scans oldest first for the first entry mutually compatible with
// the queued entry for id. On success both entries leave the queue and the
// older one is returned.
func (q *Queue) TryMatch(id string) (*QueueEntry, bool) {
	elem, ok := q.index[id]
	if !ok {
		return nil, false
	}
	arrival := elem.Value.(*QueueEntry)

	for e := q.order.Front(); e != nil; e = e.Next() {
		candidate := e.Value.(*QueueEntry)
		if candidate.ConnectionID == arrival.ConnectionID {
			continue
		}
		if arrival.LastPeer == candidate.ConnectionID || candidate.LastPeer == arrival.ConnectionID {
			continue
		}
		if !Compatible(arrival.Criteria, candidate.Criteria) {
			continue
		}
		q.Dequeue(candidate.ConnectionID)
		q.Dequeue(arrival.ConnectionID)
		return candidate, true
	}
	return nil, false
}

// ForgetPeer lifts any exclusion queued entries hold against id.
func (q *Queue) ForgetPeer(id string) {
	for e := q.order.Front(); e != nil; e = e.Next() {
		if entry := e.Value.(*QueueEntry); entry.LastPeer == id {
			entry.LastPeer = ""
		}
	}
}

func (q *Queue) Contains(id string) bool {
	_, ok := q.index[id]
	return ok
}

func (q *Queue) Len() int {
	return q.order.Len()
}

// Entries returns the queue contents, oldest first.
func (q *Queue) Entries() []QueueEntry {
	out := make([]QueueEntry, 0, q.order.Len())
	for e := q.order.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*QueueEntry))
	}
	return out
}
