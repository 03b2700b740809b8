package storage

import (
	"context"
	"sort"
	"sync"

	"payhook/internal/domain"
)

// MemoryStore keeps everything behind one mutex. It backs tests and runs
// without DATABASE_URL set.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]domain.Payment
	events   map[string]domain.EventRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments: make(map[string]domain.Payment),
		events:   make(map[string]domain.EventRecord),
	}
}

func paymentKey(provider, id string) string {
	return provider + "/" + id
}

// Event IDs are only unique within a provider.
func eventKey(provider, eventID string) string {
	return provider + "/" + eventID
}

func (s *MemoryStore) GetPayment(_ context.Context, provider, id string) (domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[paymentKey(provider, id)]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (s *MemoryStore) ApplyEvent(_ context.Context, payment domain.Payment, record domain.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments[paymentKey(payment.Provider, payment.ID)] = payment
	key := eventKey(record.Provider, record.EventID)
	if _, exists := s.events[key]; !exists {
		s.events[key] = record
	}
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, provider, paymentID string) ([]domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.EventRecord
	for _, r := range s.events {
		if r.Provider == provider && r.PaymentID == paymentID {
			records = append(records, r)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].OccurredAt.Before(records[j].OccurredAt)
	})
	return records, nil
}

func (s *MemoryStore) Summary(_ context.Context, window domain.TimeRange) (map[string]domain.ProviderSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make(map[string]domain.ProviderSummary)
	for _, r := range s.events {
		if !r.Applied || r.ReceivedAt.Before(window.From) || r.ReceivedAt.After(window.To) {
			continue
		}
		summary := summaries[r.Provider]
		summary.TotalRequests++
		summary.TotalAmount += r.Amount
		summaries[r.Provider] = summary
	}
	return summaries, nil
}

func (s *MemoryStore) Purge(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments = make(map[string]domain.Payment)
	s.events = make(map[string]domain.EventRecord)
	return nil
}
