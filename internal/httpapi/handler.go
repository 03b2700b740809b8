package httpapi

import (
	"errors"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"

	"payhook/internal/dispatch"
	"payhook/internal/domain"
	"payhook/internal/forecast"
	"payhook/internal/ledger"
	"payhook/internal/reconcile"
	"payhook/internal/signature"
	"payhook/internal/storage"
)

// HealthReporter is what the /health endpoint needs from the sink monitor.
type HealthReporter interface {
	Snapshot() map[string]bool
}

type Handler struct {
	providers  map[string]string
	tolerance  time.Duration
	ledger     ledger.Ledger
	reconciler *reconcile.Reconciler
	dispatcher *dispatch.Dispatcher
	store      storage.Store
	health     HealthReporter
}

func NewHandler(
	providers map[string]string,
	tolerance time.Duration,
	eventLedger ledger.Ledger,
	reconciler *reconcile.Reconciler,
	dispatcher *dispatch.Dispatcher,
	store storage.Store,
	health HealthReporter,
) *Handler {
	return &Handler{
		providers:  providers,
		tolerance:  tolerance,
		ledger:     eventLedger,
		reconciler: reconciler,
		dispatcher: dispatcher,
		store:      store,
		health:     health,
	}
}

// HandleWebhook ingests one provider callback. Everything past signature and
// shape checks answers 202: the provider's retry loop only needs to know the
// event landed, not what reconciliation made of it.
func (h *Handler) HandleWebhook(c *fiber.Ctx) error {
	provider := c.Params("provider")
	secret, ok := h.providers[provider]
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}

	body := c.Body()
	if err := signature.Verify([]byte(secret), c.Get(signature.Header), body, h.tolerance, time.Now()); err != nil {
		slog.Warn("rejected callback", "provider", provider, "err", err)
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var event domain.PaymentEvent
	if err := sonic.Unmarshal(body, &event); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	event.Provider = provider
	if err := event.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	first, err := h.ledger.FirstSeen(c.UserContext(), provider, event.EventID)
	if err != nil {
		// degraded dedup; the store's conflict guard still holds
		slog.Warn("ledger error", "err", err)
	} else if !first {
		return c.SendStatus(fiber.StatusAccepted)
	}

	_, applied, err := h.reconciler.Apply(c.UserContext(), event)
	switch {
	case errors.Is(err, domain.ErrStaleEvent), errors.Is(err, domain.ErrInvalidTransition):
		return c.SendStatus(fiber.StatusAccepted)
	case err != nil:
		slog.Error("reconciliation failed", "eventId", event.EventID, "err", err)
		// Released so the provider's retry is processed, not swallowed
		// as a duplicate of an event that never landed.
		h.release(c, provider, event.EventID)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if applied {
		if err := h.dispatcher.EnqueueEvent(event); err != nil {
			slog.Warn("dispatch queue full", "eventId", event.EventID)
			h.release(c, provider, event.EventID)
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *Handler) release(c *fiber.Ctx, provider, eventID string) {
	if err := h.ledger.Forget(c.UserContext(), provider, eventID); err != nil {
		slog.Warn("ledger release failed", "eventId", eventID, "err", err)
	}
}

func (h *Handler) HandlePayment(c *fiber.Ctx) error {
	payment, events, err := h.reconciler.Payment(c.UserContext(), c.Params("provider"), c.Params("id"))
	if errors.Is(err, domain.ErrPaymentNotFound) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"payment": payment,
		"events":  events,
	})
}

func (h *Handler) HandleSummary(c *fiber.Ctx) error {
	window, err := parseWindow(c.Query("from"), c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	summaries, err := h.reconciler.Summary(c.UserContext(), window)
	if err != nil {
		return err
	}
	return c.JSON(summaries)
}

func parseWindow(fromStr, toStr string) (domain.TimeRange, error) {
	window := domain.TimeRange{
		From: time.Now().Add(-24 * time.Hour),
		To:   time.Now(),
	}

	if fromStr != "" {
		from, err := time.Parse(time.RFC3339Nano, fromStr)
		if err != nil {
			return domain.TimeRange{}, errors.New("invalid from timestamp")
		}
		window.From = from
	}
	if toStr != "" {
		to, err := time.Parse(time.RFC3339Nano, toStr)
		if err != nil {
			return domain.TimeRange{}, errors.New("invalid to timestamp")
		}
		window.To = to
	}
	return window, nil
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	metrics := h.dispatcher.Snapshot()

	response := fiber.Map{
		"status":       "healthy",
		"queueSize":    h.dispatcher.QueueDepth(),
		"delivered":    metrics.Delivered,
		"retried":      metrics.Retried,
		"dropped":      metrics.Dropped,
		"deadLettered": metrics.DeadLettered,
	}
	if h.health != nil {
		response["sinks"] = h.health.Snapshot()
	}
	return c.JSON(response)
}

func (h *Handler) HandleReplay(c *fiber.Ctx) error {
	replayed, err := h.dispatcher.Replay(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"replayed": replayed})
}

func (h *Handler) HandlePurge(c *fiber.Ctx) error {
	if err := h.store.Purge(c.UserContext()); err != nil {
		return err
	}
	if err := h.ledger.Purge(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) HandleForecast(c *fiber.Ctx) error {
	var req forecast.Request
	if err := sonic.Unmarshal(c.Body(), &req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	res, err := forecast.Run(req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(res)
}
