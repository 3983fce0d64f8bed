package music

import (
	"math/rand/v2"
	"sync"
)

// Queue is a bounded FIFO of items. Add never blocks or evicts; it refuses
// items once the queue holds its capacity. Dequeued items are kept in a
// short most-recent-first history.
type Queue struct {
	mu          sync.Mutex
	items       []PlayableItem
	capacity    int
	history     []PlayableItem
	historySize int
}

type QueueInfo struct {
	Size          int
	Capacity      int
	TotalDuration int
	IsFull        bool
}

func NewQueue(capacity, historySize int) *Queue {
	return &Queue{
		capacity:    max(capacity, 1),
		historySize: max(historySize, 0),
	}
}

// Add appends item and reports whether there was room for it.
func (q *Queue) Add(item PlayableItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, item)
	return true
}

// Next removes and returns the head of the queue.
func (q *Queue) Next() (PlayableItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return PlayableItem{}, false
	}
	item := q.items[0]
	q.items[0] = PlayableItem{}
	q.items = q.items[1:]

	if q.historySize > 0 {
		q.history = append([]PlayableItem{item}, q.history...)
		if len(q.history) > q.historySize {
			q.history = q.history[:q.historySize]
		}
	}
	return item, true
}

// Requeue undoes the last Next: item goes back to the head of the queue and
// leaves the history. It reports false when the queue filled up meanwhile.
func (q *Queue) Requeue(item PlayableItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append([]PlayableItem{item}, q.items...)
	if len(q.history) > 0 {
		q.history = q.history[1:]
	}
	return true
}

func (q *Queue) Peek() (PlayableItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return PlayableItem{}, false
	}
	return q.items[0], true
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Remove deletes the item at index.
func (q *Queue) Remove(index int) (PlayableItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.items) {
		return PlayableItem{}, false
	}
	item := q.items[index]
	q.items = append(q.items[:index:index], q.items[index+1:]...)
	return item, true
}

// Move relocates the item at from so that it ends up at index to.
func (q *Queue) Move(from, to int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	item := q.items[from]
	rest := append(q.items[:from:from], q.items[from+1:]...)
	q.items = append(rest[:to:to], append([]PlayableItem{item}, rest[to:]...)...)
	return true
}

func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	rand.Shuffle(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Capacity() int {
	return q.capacity
}

func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue) IsFull() bool {
	return q.Len() >= q.capacity
}

func (q *Queue) Remaining() int {
	return q.capacity - q.Len()
}

// Items returns a copy of the queued items in play order.
func (q *Queue) Items() []PlayableItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PlayableItem, len(q.items))
	copy(out, q.items)
	return out
}

// History returns recently dequeued items, most recent first.
func (q *Queue) History() []PlayableItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PlayableItem, len(q.history))
	copy(out, q.history)
	return out
}

func (q *Queue) Info() QueueInfo {
	q.mu.Lock()
	defer q.mu.Unlock()
	var total int
	for _, item := range q.items {
		total += item.DurationSeconds
	}
	return QueueInfo{
		Size:          len(q.items),
		Capacity:      q.capacity,
		TotalDuration: total,
		IsFull:        len(q.items) >= q.capacity,
	}
}
