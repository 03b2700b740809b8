// Package reconcile tracks payment lifecycles from provider events. Events
// arrive at-least-once and out of order; the reconciler decides whether each
// one advances the payment, is stale, or is a discrepancy.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"payhook/internal/domain"
	"payhook/internal/storage"
)

type Reconciler struct {
	store storage.Store
	now   func() time.Time
}

func NewReconciler(store storage.Store) *Reconciler {
	return &Reconciler{
		store: store,
		now:   time.Now,
	}
}

// Apply folds one event into the payment's lifecycle. The returned bool is
// true when the event changed state and should be dispatched downstream.
//
// Stale events (provider timestamp not after the last applied one) return
// domain.ErrStaleEvent and leave no trace. Invalid transitions return
// domain.ErrInvalidTransition but are still recorded, unapplied, so the
// discrepancy is auditable.
func (r *Reconciler) Apply(ctx context.Context, event domain.PaymentEvent) (domain.Payment, bool, error) {
	target, ok := event.Type.Status()
	if !ok {
		return domain.Payment{}, false, domain.ErrInvalidTransition
	}

	payment, err := r.store.GetPayment(ctx, event.Provider, event.PaymentID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		// Providers may deliver payment.created last; first contact
		// creates the record in whatever state the event asserts.
		return r.create(ctx, event, target)
	}
	if err != nil {
		return domain.Payment{}, false, err
	}

	if !event.OccurredAt.After(payment.LastEventAt) {
		if event.OccurredAt.Equal(payment.LastEventAt) && target == payment.Status {
			// Redelivery of the event that set the current state. The
			// ledger only lets one through when a prior attempt failed
			// after applying, so hand it back for dispatch.
			return payment, true, nil
		}
		return payment, false, domain.ErrStaleEvent
	}

	if target == payment.Status {
		// Newer event asserting the current state. Recorded for the
		// audit trail, nothing to dispatch.
		payment.LastEventAt = event.OccurredAt
		payment.UpdatedAt = r.now()
		if err := r.store.ApplyEvent(ctx, payment, r.record(event, false)); err != nil {
			return payment, false, err
		}
		return payment, false, nil
	}

	if !domain.CanTransition(payment.Status, target) {
		slog.Warn("discrepancy: invalid transition",
			"provider", event.Provider,
			"paymentId", event.PaymentID,
			"from", payment.Status,
			"to", target,
			"eventId", event.EventID,
		)
		if err := r.store.ApplyEvent(ctx, payment, r.record(event, false)); err != nil {
			return payment, false, err
		}
		return payment, false, domain.ErrInvalidTransition
	}

	payment.Status = target
	payment.LastEventAt = event.OccurredAt
	payment.UpdatedAt = r.now()
	if event.Amount > 0 {
		payment.Amount = event.Amount
		payment.Currency = event.Currency
	}

	if err := r.store.ApplyEvent(ctx, payment, r.record(event, true)); err != nil {
		return payment, false, err
	}

	slog.Info("payment reconciled",
		"provider", event.Provider,
		"paymentId", event.PaymentID,
		"status", target,
	)
	return payment, true, nil
}

func (r *Reconciler) create(ctx context.Context, event domain.PaymentEvent, target domain.PaymentStatus) (domain.Payment, bool, error) {
	payment := domain.Payment{
		ID:          event.PaymentID,
		Provider:    event.Provider,
		Amount:      event.Amount,
		Currency:    event.Currency,
		Status:      target,
		LastEventAt: event.OccurredAt,
		UpdatedAt:   r.now(),
	}

	if err := r.store.ApplyEvent(ctx, payment, r.record(event, true)); err != nil {
		return domain.Payment{}, false, err
	}
	return payment, true, nil
}

func (r *Reconciler) record(event domain.PaymentEvent, applied bool) domain.EventRecord {
	return domain.EventRecord{
		PaymentEvent: event,
		Applied:      applied,
		ReceivedAt:   r.now(),
	}
}

// Payment returns the current state plus the recorded event history.
func (r *Reconciler) Payment(ctx context.Context, provider, id string) (domain.Payment, []domain.EventRecord, error) {
	payment, err := r.store.GetPayment(ctx, provider, id)
	if err != nil {
		return domain.Payment{}, nil, err
	}

	events, err := r.store.ListEvents(ctx, provider, id)
	if err != nil {
		return domain.Payment{}, nil, err
	}
	return payment, events, nil
}

func (r *Reconciler) Summary(ctx context.Context, window domain.TimeRange) (map[string]domain.ProviderSummary, error) {
	return r.store.Summary(ctx, window)
}
