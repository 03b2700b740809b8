package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"payhook/internal/domain"
	"payhook/internal/storage"
)

func event(id, paymentID string, eventType domain.EventType, occurredAt time.Time) domain.PaymentEvent {
	return domain.PaymentEvent{
		EventID:    id,
		Provider:   "acme",
		PaymentID:  paymentID,
		Type:       eventType,
		Amount:     100,
		Currency:   "USD",
		OccurredAt: occurredAt,
	}
}

func TestApplyCreatesUnknownPayment(t *testing.T) {
	r := NewReconciler(storage.NewMemoryStore())
	ctx := context.Background()

	payment, applied, err := r.Apply(ctx, event("evt_1", "pay_1", domain.EventPaymentCreated, time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Fatal("expected event to be applied")
	}
	if payment.Status != domain.StatusPending {
		t.Errorf("expected pending, got %s", payment.Status)
	}
}

func TestApplyCreatesFromNonCreatedEvent(t *testing.T) {
	r := NewReconciler(storage.NewMemoryStore())
	ctx := context.Background()

	payment, applied, err := r.Apply(ctx, event("evt_1", "pay_1", domain.EventPaymentSucceeded, time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied || payment.Status != domain.StatusSucceeded {
		t.Errorf("expected succeeded payment created, got %s applied=%v", payment.Status, applied)
	}
}

func TestApplyFullLifecycle(t *testing.T) {
	r := NewReconciler(storage.NewMemoryStore())
	ctx := context.Background()
	base := time.Now()

	steps := []struct {
		eventType domain.EventType
		want      domain.PaymentStatus
	}{
		{domain.EventPaymentCreated, domain.StatusPending},
		{domain.EventPaymentProcessing, domain.StatusProcessing},
		{domain.EventPaymentSucceeded, domain.StatusSucceeded},
		{domain.EventPaymentRefunded, domain.StatusRefunded},
	}

	for i, step := range steps {
		payment, applied, err := r.Apply(ctx, event(
			"evt_"+string(step.eventType), "pay_1", step.eventType, base.Add(time.Duration(i)*time.Second)))
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if !applied {
			t.Fatalf("step %d: expected event to be applied", i)
		}
		if payment.Status != step.want {
			t.Fatalf("step %d: expected %s, got %s", i, step.want, payment.Status)
		}
	}
}

func TestApplyStaleEventIgnored(t *testing.T) {
	r := NewReconciler(storage.NewMemoryStore())
	ctx := context.Background()
	base := time.Now()

	r.Apply(ctx, event("evt_1", "pay_1", domain.EventPaymentProcessing, base))

	// succeeded arrives with an older provider timestamp
	payment, applied, err := r.Apply(ctx, event("evt_2", "pay_1", domain.EventPaymentSucceeded, base.Add(-time.Second)))
	if !errors.Is(err, domain.ErrStaleEvent) {
		t.Fatalf("expected ErrStaleEvent, got %v", err)
	}
	if applied {
		t.Fatal("stale event must not be applied")
	}
	if payment.Status != domain.StatusProcessing {
		t.Errorf("expected status unchanged, got %s", payment.Status)
	}
}

func TestApplyRedeliveredEventDispatchedAgain(t *testing.T) {
	r := NewReconciler(storage.NewMemoryStore())
	ctx := context.Background()
	base := time.Now()

	r.Apply(ctx, event("evt_1", "pay_1", domain.EventPaymentSucceeded, base))

	// identical event again, as when the first attempt failed after
	// applying and the provider retried
	payment, applied, err := r.Apply(ctx, event("evt_1", "pay_1", domain.EventPaymentSucceeded, base))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Fatal("expected redelivery to be handed back for dispatch")
	}
	if payment.Status != domain.StatusSucceeded {
		t.Errorf("expected status unchanged, got %s", payment.Status)
	}
}

func TestApplyInvalidTransitionRecordedAsDiscrepancy(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewReconciler(store)
	ctx := context.Background()
	base := time.Now()

	r.Apply(ctx, event("evt_1", "pay_1", domain.EventPaymentRefunded, base))

	// refunded is terminal; processing afterwards is a discrepancy
	_, applied, err := r.Apply(ctx, event("evt_2", "pay_1", domain.EventPaymentProcessing, base.Add(time.Second)))
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if applied {
		t.Fatal("discrepancy must not be applied")
	}

	events, _ := store.ListEvents(ctx, "acme", "pay_1")
	if len(events) != 2 {
		t.Fatalf("expected discrepancy to be recorded, got %d events", len(events))
	}
	if events[1].Applied {
		t.Error("discrepancy record must be marked unapplied")
	}
}

func TestApplyFailedRetriesToProcessing(t *testing.T) {
	r := NewReconciler(storage.NewMemoryStore())
	ctx := context.Background()
	base := time.Now()

	r.Apply(ctx, event("evt_1", "pay_1", domain.EventPaymentFailed, base))

	payment, applied, err := r.Apply(ctx, event("evt_2", "pay_1", domain.EventPaymentProcessing, base.Add(time.Second)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied || payment.Status != domain.StatusProcessing {
		t.Errorf("expected failed -> processing, got %s applied=%v", payment.Status, applied)
	}
}

func TestApplySameStateNotDispatched(t *testing.T) {
	r := NewReconciler(storage.NewMemoryStore())
	ctx := context.Background()
	base := time.Now()

	r.Apply(ctx, event("evt_1", "pay_1", domain.EventPaymentProcessing, base))

	payment, applied, err := r.Apply(ctx, event("evt_2", "pay_1", domain.EventPaymentProcessing, base.Add(time.Second)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Fatal("same-state event must not trigger dispatch")
	}
	if !payment.LastEventAt.Equal(base.Add(time.Second)) {
		t.Error("expected LastEventAt to advance")
	}
}

func TestPaymentReturnsHistory(t *testing.T) {
	r := NewReconciler(storage.NewMemoryStore())
	ctx := context.Background()
	base := time.Now()

	r.Apply(ctx, event("evt_1", "pay_1", domain.EventPaymentCreated, base))
	r.Apply(ctx, event("evt_2", "pay_1", domain.EventPaymentSucceeded, base.Add(time.Second)))

	payment, events, err := r.Payment(ctx, "acme", "pay_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Status != domain.StatusSucceeded {
		t.Errorf("expected succeeded, got %s", payment.Status)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events in history, got %d", len(events))
	}
}
