package repository

import (
	"time"

	"github.com/cch137/webrtc-demo-2025-11/internal/domain"
)

const DefaultQueueCapacity = 64

// Queue is a bounded FIFO of payloads for a single key.
// It is not safe for concurrent use; Store serializes access to it.
type Queue struct {
	items     []domain.Payload
	capacity  int
	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

func NewQueue(capacity int, now func() time.Time) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if now == nil {
		now = time.Now
	}

	ts := now()
	return &Queue{
		items:     make([]domain.Payload, 0, min(capacity, 8)),
		capacity:  capacity,
		createdAt: ts,
		updatedAt: ts,
		now:       now,
	}
}

// Push appends p to the tail. A full queue is left unchanged.
func (q *Queue) Push(p domain.Payload) error {
	if len(q.items) >= q.capacity {
		return domain.ErrQueueFull
	}
	q.items = append(q.items, p)
	q.touch()
	return nil
}

// Pop removes the head. Polling an empty queue still counts as activity.
func (q *Queue) Pop() (domain.Payload, bool) {
	q.touch()
	if len(q.items) == 0 {
		return nil, false
	}

	p := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return p, true
}

// PopAll removes and returns every entry in push order.
func (q *Queue) PopAll() []domain.Payload {
	q.touch()
	items := q.items
	q.items = nil
	if items == nil {
		items = []domain.Payload{}
	}
	return items
}

func (q *Queue) Len() int {
	return len(q.items)
}

func (q *Queue) IsEmpty() bool {
	return len(q.items) == 0
}

func (q *Queue) CreatedAt() time.Time {
	return q.createdAt
}

func (q *Queue) LastActivity() time.Time {
	return q.updatedAt
}

func (q *Queue) touch() {
	q.updatedAt = q.now()
}
