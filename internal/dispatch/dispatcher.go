// Package dispatch delivers reconciled events to downstream sinks with
// bounded retries, exponential backoff and a dead-letter list for what gives
// up.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"payhook/internal/domain"
	"payhook/internal/sentinel"
)

// HealthChecker reports whether a sink is worth attempting right now.
type HealthChecker interface {
	Healthy(sink string) bool
}

type Metrics struct {
	mu           sync.RWMutex
	Delivered    uint64
	Retried      uint64
	Dropped      uint64
	DeadLettered uint64
}

type Dispatcher struct {
	queue       *Queue
	sender      Sender
	breakers    *BreakerSet
	health      HealthChecker
	deadletters DeadLetters
	sinks       []string

	workers     int
	maxAttempts int
	maxSkips    int
	baseDelay   time.Duration
	maxDelay    time.Duration
	timeout     time.Duration

	shutdown chan struct{}
	wg       sync.WaitGroup
	metrics  Metrics
}

type Options struct {
	Sinks       []string
	Workers     int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

func NewDispatcher(queue *Queue, sender Sender, breakers *BreakerSet, health HealthChecker, deadletters DeadLetters, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 8
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	return &Dispatcher{
		queue:       queue,
		sender:      sender,
		breakers:    breakers,
		health:      health,
		deadletters: deadletters,
		sinks:       opts.Sinks,
		workers:     opts.Workers,
		maxAttempts: opts.MaxAttempts,
		maxSkips:    4 * opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		timeout:     opts.Timeout,
		shutdown:    make(chan struct{}),
	}
}

// EnqueueEvent fans the event out to one delivery per configured sink.
func (d *Dispatcher) EnqueueEvent(event domain.PaymentEvent) error {
	for _, sink := range d.sinks {
		delivery := Delivery{
			ID:         uuid.NewString(),
			Sink:       sink,
			Event:      event,
			EnqueuedAt: time.Now(),
		}
		if err := d.queue.Enqueue(delivery); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *Dispatcher) Stop() {
	close(d.shutdown)
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.shutdown:
			return
		case delivery := <-d.queue.Channel():
			d.process(delivery)
		}
	}
}

func (d *Dispatcher) process(delivery Delivery) {
	if d.health != nil && !d.health.Healthy(delivery.Sink) {
		d.postpone(delivery)
		return
	}

	breaker := d.breakers.For(delivery.Sink)
	if !breaker.Allow() {
		d.postpone(delivery)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	err := d.sender.Deliver(ctx, delivery)
	cancel()

	if err == nil {
		breaker.Success()
		d.incrementDelivered()
		return
	}

	if sentinel.IsPermanent(err) {
		slog.Warn("dropping delivery after permanent failure",
			"deliveryId", delivery.ID,
			"sink", delivery.Sink,
			"err", err,
		)
		d.incrementDropped()
		return
	}

	breaker.Failure()
	d.requeue(delivery)
}

// requeue reschedules a delivery whose send failed, charging its attempt
// budget.
func (d *Dispatcher) requeue(delivery Delivery) {
	delivery.Attempts++
	if delivery.Attempts >= d.maxAttempts {
		d.deadLetter(delivery)
		return
	}

	d.incrementRetried()
	d.schedule(delivery)
}

// postpone reschedules a delivery that was never sent because its sink was
// unhealthy or its breaker open. Skips have their own, looser budget so an
// outage does not burn attempts without a single send.
func (d *Dispatcher) postpone(delivery Delivery) {
	delivery.Skips++
	if delivery.Skips >= d.maxSkips {
		d.deadLetter(delivery)
		return
	}

	d.schedule(delivery)
}

func (d *Dispatcher) deadLetter(delivery Delivery) {
	if err := d.deadletters.Push(context.Background(), delivery); err != nil {
		slog.Error("failed to dead-letter delivery", "deliveryId", delivery.ID, "err", err)
	}
	slog.Warn("delivery dead-lettered",
		"deliveryId", delivery.ID,
		"sink", delivery.Sink,
		"attempts", delivery.Attempts,
		"skips", delivery.Skips,
	)
	d.incrementDeadLettered()
}

func (d *Dispatcher) schedule(delivery Delivery) {
	backoff := d.baseDelay * time.Duration(1<<(delivery.Attempts+delivery.Skips))
	if backoff > d.maxDelay {
		backoff = d.maxDelay
	}

	go func() {
		select {
		case <-time.After(backoff):
		case <-d.shutdown:
			// shutting down mid-wait; dead-letter so the delivery
			// survives the restart
			d.deadLetter(delivery)
			return
		}
		if err := d.queue.Enqueue(delivery); err != nil {
			slog.Warn("retry queue full, dead-lettering", "deliveryId", delivery.ID)
			d.deadLetter(delivery)
		}
	}()
}

// Replay moves everything off the dead-letter list back onto the queue with a
// fresh attempt budget.
func (d *Dispatcher) Replay(ctx context.Context) (int, error) {
	deliveries, err := d.deadletters.Drain(ctx)
	if err != nil {
		// Drain can fail partway with deliveries already popped; put
		// them back rather than losing them.
		for _, delivery := range deliveries {
			if pushErr := d.deadletters.Push(ctx, delivery); pushErr != nil {
				slog.Error("failed to restore delivery to dead letters", "deliveryId", delivery.ID, "err", pushErr)
			}
		}
		return 0, err
	}

	replayed := 0
	for _, delivery := range deliveries {
		delivery.Attempts = 0
		delivery.Skips = 0
		if err := d.queue.Enqueue(delivery); err != nil {
			// put the rest back rather than losing them
			if pushErr := d.deadletters.Push(ctx, delivery); pushErr != nil {
				slog.Error("failed to restore delivery to dead letters", "deliveryId", delivery.ID, "err", pushErr)
			}
			continue
		}
		replayed++
	}
	return replayed, nil
}

func (d *Dispatcher) QueueDepth() int {
	return d.queue.Depth()
}

func (d *Dispatcher) Snapshot() Metrics {
	d.metrics.mu.RLock()
	defer d.metrics.mu.RUnlock()
	return Metrics{
		Delivered:    d.metrics.Delivered,
		Retried:      d.metrics.Retried,
		Dropped:      d.metrics.Dropped,
		DeadLettered: d.metrics.DeadLettered,
	}
}

func (d *Dispatcher) incrementDelivered() {
	d.metrics.mu.Lock()
	defer d.metrics.mu.Unlock()
	d.metrics.Delivered++
}

func (d *Dispatcher) incrementRetried() {
	d.metrics.mu.Lock()
	defer d.metrics.mu.Unlock()
	d.metrics.Retried++
}

func (d *Dispatcher) incrementDropped() {
	d.metrics.mu.Lock()
	defer d.metrics.mu.Unlock()
	d.metrics.Dropped++
}

func (d *Dispatcher) incrementDeadLettered() {
	d.metrics.mu.Lock()
	defer d.metrics.mu.Unlock()
	d.metrics.DeadLettered++
}
