package reconcile

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/gateway"
)

// WebhookHandler accepts gateway push notifications. The gateway expects a
// prompt acknowledgement regardless of how long reconciliation takes, so the
// handler dispatches the reconcile asynchronously and answers immediately.
// Re-delivered notifications are absorbed by the engine's idempotency check.
type WebhookHandler struct {
	engine *Engine
	logger *slog.Logger
}

// NewWebhookHandler constructs the webhook endpoint handler.
func NewWebhookHandler(engine *Engine, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{engine: engine, logger: logger}
}

type webhookPayload struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

// Handle acknowledges the notification and reconciles in the background.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	var payload webhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed notification")
	}
	if payload.Object.ID == "" || payload.Object.Status == "" {
		return fiber.NewError(http.StatusBadRequest, "notification missing payment id or status")
	}

	paymentID := payload.Object.ID
	status := gateway.Status(payload.Object.Status)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := h.engine.Reconcile(ctx, paymentID, status); err != nil {
			h.logger.Error("webhook: reconcile failed", "payment_id", paymentID, "status", status, "error", err)
		}
	}()

	return c.SendStatus(http.StatusOK)
}
