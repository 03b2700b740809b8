package storage

import (
	"context"

	"payhook/internal/domain"
)

// Store is the durable side of reconciliation: payment rows plus the full
// event history, including events recorded as discrepancies.
type Store interface {
	GetPayment(ctx context.Context, provider, id string) (domain.Payment, error)
	ApplyEvent(ctx context.Context, payment domain.Payment, record domain.EventRecord) error
	ListEvents(ctx context.Context, provider, paymentID string) ([]domain.EventRecord, error)
	Summary(ctx context.Context, window domain.TimeRange) (map[string]domain.ProviderSummary, error)
	Purge(ctx context.Context) error
}
