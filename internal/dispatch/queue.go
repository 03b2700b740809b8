package dispatch

import (
	"time"

	"payhook/internal/domain"
)

// Delivery is one pending notification of one event to one sink.
type Delivery struct {
	ID         string              `json:"id"`
	Sink       string              `json:"sink"`
	Event      domain.PaymentEvent `json:"event"`
	Attempts   int                 `json:"attempts"`
	Skips      int                 `json:"skips"`
	EnqueuedAt time.Time           `json:"enqueuedAt"`
}

type Queue struct {
	deliveries chan Delivery
	capacity   int
}

func NewQueue(capacity int) *Queue {
	return &Queue{
		deliveries: make(chan Delivery, capacity),
		capacity:   capacity,
	}
}

func (q *Queue) Enqueue(d Delivery) error {
	select {
	case q.deliveries <- d:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

func (q *Queue) Channel() <-chan Delivery {
	return q.deliveries
}

func (q *Queue) Depth() int {
	return len(q.deliveries)
}
