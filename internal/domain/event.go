package domain

import (
	"errors"
	"time"
)

type EventType string

const (
	EventPaymentCreated    EventType = "payment.created"
	EventPaymentProcessing EventType = "payment.processing"
	EventPaymentSucceeded  EventType = "payment.succeeded"
	EventPaymentFailed     EventType = "payment.failed"
	EventPaymentRefunded   EventType = "payment.refunded"
)

var eventStatus = map[EventType]PaymentStatus{
	EventPaymentCreated:    StatusPending,
	EventPaymentProcessing: StatusProcessing,
	EventPaymentSucceeded:  StatusSucceeded,
	EventPaymentFailed:     StatusFailed,
	EventPaymentRefunded:   StatusRefunded,
}

// Status maps an event type to the lifecycle state it asserts.
func (t EventType) Status() (PaymentStatus, bool) {
	s, ok := eventStatus[t]
	return s, ok
}

// PaymentEvent is one provider callback. EventID is the provider's unique
// identifier for the notification and drives deduplication; OccurredAt is the
// provider's clock, not ours.
type PaymentEvent struct {
	EventID    string    `json:"eventId"`
	Provider   string    `json:"provider"`
	PaymentID  string    `json:"paymentId"`
	Type       EventType `json:"type"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e PaymentEvent) Validate() error {
	if e.EventID == "" {
		return errors.New("invalid eventId")
	}
	if e.PaymentID == "" {
		return errors.New("invalid paymentId")
	}
	if _, ok := e.Type.Status(); !ok {
		return errors.New("unknown event type")
	}
	if e.Amount < 0 {
		return errors.New("invalid amount")
	}
	if e.OccurredAt.IsZero() {
		return errors.New("invalid occurredAt")
	}
	return nil
}

// EventRecord is a PaymentEvent as applied to the ledger. Applied is false for
// events that were recorded but produced no state change (discrepancies).
type EventRecord struct {
	PaymentEvent
	Applied    bool      `json:"applied"`
	ReceivedAt time.Time `json:"receivedAt"`
}
