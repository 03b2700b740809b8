package domain

import (
	"time"
)

type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusSucceeded  PaymentStatus = "succeeded"
	StatusFailed     PaymentStatus = "failed"
	StatusRefunded   PaymentStatus = "refunded"
)

// transitions holds the allowed forward moves of the payment lifecycle.
// refunded is terminal. failed -> processing covers provider-side retries.
var transitions = map[PaymentStatus][]PaymentStatus{
	StatusPending:    {StatusProcessing, StatusSucceeded, StatusFailed},
	StatusProcessing: {StatusSucceeded, StatusFailed},
	StatusSucceeded:  {StatusRefunded},
	StatusFailed:     {StatusProcessing},
	StatusRefunded:   {},
}

func CanTransition(from, to PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Payment struct {
	ID          string        `json:"id"`
	Provider    string        `json:"provider"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`
	LastEventAt time.Time     `json:"lastEventAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type ProviderSummary struct {
	TotalRequests int64   `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

type TimeRange struct {
	From time.Time
	To   time.Time
}
