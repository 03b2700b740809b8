package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"payhook/internal/dispatch"
	"payhook/internal/signature"
)

// Register wires the routes. The /docs listing is only exposed outside
// production.
func Register(app *fiber.App, h *Handler, production bool) {
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept," + signature.Header + "," + dispatch.DeliveryHeader,
	}))

	app.Post("/webhooks/:provider", h.HandleWebhook)
	app.Get("/payments/:provider/:id", h.HandlePayment)
	app.Get("/payments-summary", h.HandleSummary)
	app.Get("/health", h.HandleHealth)
	app.Post("/purge", h.HandlePurge)
	app.Post("/deliveries/replay", h.HandleReplay)
	app.Post("/forecast", h.HandleForecast)

	if !production {
		app.Get("/docs", handleDocs)
	}
}

func handleDocs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"routes": []fiber.Map{
			{"method": "POST", "path": "/webhooks/:provider", "description": "inbound provider callback (signed)"},
			{"method": "GET", "path": "/payments/:provider/:id", "description": "payment state and event history"},
			{"method": "GET", "path": "/payments-summary", "description": "per-provider totals over a time window"},
			{"method": "GET", "path": "/health", "description": "dispatcher metrics and sink health"},
			{"method": "POST", "path": "/deliveries/replay", "description": "requeue dead-lettered deliveries"},
			{"method": "POST", "path": "/forecast", "description": "monthly volume forecast"},
			{"method": "POST", "path": "/purge", "description": "drop all state (test support)"},
		},
	})
}
