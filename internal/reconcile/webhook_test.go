package reconcile

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/ledger"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/logging"
)

func webhookApp(f *fixture) *fiber.App {
	app := fiber.New()
	h := NewWebhookHandler(f.engine, logging.Discard())
	app.Post("/webhooks/payment", h.Handle)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestWebhookAcknowledgesAndSettles(t *testing.T) {
	f := newFixture(t)
	app := webhookApp(f)
	w, tx := f.openDeposit(t, "buyer-1", "pay-1", 5_000)

	status := postWebhook(t, app, `{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded"}}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", status)
	}

	// Reconciliation runs asynchronously after the acknowledgement.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := f.store.Get(context.Background(), tx.ID)
		if err != nil {
			t.Fatalf("get transaction: %v", err)
		}
		if got.Status == ledger.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transaction never settled, status %s", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	updated, err := f.wallets.Get(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if updated.Balance != 5_000 {
		t.Fatalf("expected balance 5000 got %d", updated.Balance)
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)
	app := webhookApp(f)

	if status := postWebhook(t, app, `{not json`); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", status)
	}
	if status := postWebhook(t, app, `{"event":"payment.succeeded","object":{"id":"","status":"succeeded"}}`); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for missing payment id, got %d", status)
	}
	if status := postWebhook(t, app, `{"event":"payment.succeeded","object":{"id":"pay-1","status":""}}`); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for missing status, got %d", status)
	}
}
