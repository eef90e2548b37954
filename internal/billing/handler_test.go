package billing

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/logging"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/notification"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/reconcile"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/wallet"
)

func newTestApp(t *testing.T) (*fiber.App, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	logger := logging.Discard()
	engine := reconcile.NewEngine(f.intents, f.store, f.wallets, f.subs, f.gw,
		notification.NewLoggerNotifier(logger), logger)
	h := NewHandler(f.svc, engine, f.subs)

	app := fiber.New()
	app.Post("/wallets/deposit", h.Deposit)
	app.Post("/wallets/payout", h.Payout)
	app.Post("/purchases", h.Purchase)
	app.Post("/tariffs/trial", h.ActivateTrial)
	app.Get("/payments/:paymentId/status", h.PollPayment)
	app.Get("/wallets/:ownerKind/:accountId", h.Summary)
	app.Get("/subscriptions/:accountId/quota", h.QuotaCheck)
	return app, f
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 && json.Valid(raw) && raw[0] == '{' {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode body %q: %v", raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func TestDepositEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/wallets/deposit",
		`{"account_id":"buyer-1","owner_kind":"buyer","amount_kopecks":5000}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", status)
	}
	if body["confirmation_url"] == "" || body["payment_id"] == "" {
		t.Fatalf("expected payment fields in response, got %v", body)
	}
	if body["amount_kopecks"].(float64) != 5000 {
		t.Fatalf("expected amount 5000 got %v", body["amount_kopecks"])
	}
}

func TestDepositEndpointRejectsBadOwnerKind(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodPost, "/wallets/deposit",
		`{"account_id":"buyer-1","owner_kind":"admin","amount_kopecks":5000}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", status)
	}
}

func TestPayoutEndpointInsufficientFunds(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodPost, "/wallets/payout",
		`{"account_id":"seller-1","owner_kind":"seller","amount_kopecks":5000,"method":"bank_card","destination":"5555****4444"}`)
	if status != fiber.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", status)
	}
}

func TestTrialEndpointConflictsOnSecondClaim(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodPost, "/tariffs/trial", `{"account_id":"seller-1"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", status)
	}
	status, _ = doJSON(t, app, fiber.MethodPost, "/tariffs/trial", `{"account_id":"seller-1"}`)
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 got %d", status)
	}
}

func TestPurchaseEndpointMovesMoney(t *testing.T) {
	app, f := newTestApp(t)
	f.fund(t, "buyer-1", wallet.OwnerBuyer, 10_000)

	status, body := doJSON(t, app, fiber.MethodPost, "/purchases",
		`{"buyer_id":"buyer-1","seller_id":"seller-1","amount_kopecks":2000,"title":"Кружка"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", status)
	}
	if body["commission_kopecks"].(float64) != 100 {
		t.Fatalf("expected commission 100 got %v", body["commission_kopecks"])
	}

	status, summary := doJSON(t, app, fiber.MethodGet, "/wallets/buyer/buyer-1", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", status)
	}
	if summary["balance_kopecks"].(float64) != 8000 {
		t.Fatalf("expected buyer balance 8000 got %v", summary["balance_kopecks"])
	}
}

func TestPollEndpointReportsPending(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/wallets/deposit",
		`{"account_id":"buyer-1","owner_kind":"buyer","amount_kopecks":5000}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", status)
	}
	paymentID := body["payment_id"].(string)

	status, poll := doJSON(t, app, fiber.MethodGet, "/payments/"+paymentID+"/status", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", status)
	}
	if poll["outcome"] != string(reconcile.OutcomePending) {
		t.Fatalf("expected pending outcome got %v", poll["outcome"])
	}
}

func TestQuotaEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodGet, "/subscriptions/seller-1/quota", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", status)
	}
	if body["allowed"].(bool) {
		t.Fatal("expected denial without an active plan")
	}
}
