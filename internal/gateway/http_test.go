package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMinorToValue(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{100, "1.00"},
		{12_345, "123.45"},
		{-12_345, "-123.45"},
		{299_900, "2999.00"},
	}
	for _, tc := range cases {
		if got := minorToValue(tc.amount); got != tc.want {
			t.Errorf("minorToValue(%d) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}

func TestValueToMinor(t *testing.T) {
	cases := []struct {
		value string
		want  int64
	}{
		{"", 0},
		{"0.00", 0},
		{"0.05", 5},
		{"1", 100},
		{"123.45", 12_345},
		{"123.4", 12_340},
		{"-123.45", -12_345},
	}
	for _, tc := range cases {
		got, err := valueToMinor(tc.value)
		if err != nil {
			t.Errorf("valueToMinor(%q): %v", tc.value, err)
			continue
		}
		if got != tc.want {
			t.Errorf("valueToMinor(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}

	if _, err := valueToMinor("abc"); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestCreatePaymentRequestShape(t *testing.T) {
	var captured struct {
		auth       string
		idemKey    string
		bodyAmount string
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		captured.auth = user
		captured.idemKey = r.Header.Get("Idempotence-Key")

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		amount, _ := body["amount"].(map[string]any)
		captured.bodyAmount, _ = amount["value"].(string)

		json.NewEncoder(w).Encode(paymentPayload{
			ID:     "pay-1",
			Status: string(StatusPending),
			Amount: amountPayload{Value: "499.00", Currency: "RUB"},
			Confirmation: confirmationPayload{
				Type:            "redirect",
				ConfirmationURL: "https://gw.example/confirm/pay-1",
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "shop-1", "secret", time.Second)
	payment, err := c.CreatePayment(context.Background(), CreatePaymentInput{
		Amount:      49_900,
		Description: "Тариф",
		ReturnURL:   "https://market.example/return",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	if captured.auth != "shop-1" {
		t.Errorf("expected basic auth user shop-1, got %q", captured.auth)
	}
	if captured.idemKey == "" {
		t.Error("expected Idempotence-Key header on POST")
	}
	if captured.bodyAmount != "499.00" {
		t.Errorf("expected amount value 499.00, got %q", captured.bodyAmount)
	}

	if payment.ID != "pay-1" || payment.Status != StatusPending {
		t.Fatalf("unexpected payment: %+v", payment)
	}
	if payment.Amount != 49_900 {
		t.Fatalf("expected amount 49900 got %d", payment.Amount)
	}
	if payment.ConfirmationURL != "https://gw.example/confirm/pay-1" {
		t.Fatalf("unexpected confirmation url %q", payment.ConfirmationURL)
	}
}

func TestServerErrorsMapToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "shop-1", "secret", time.Second)
	if _, err := c.GetPayment(context.Background(), "pay-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable got %v", err)
	}
}

func TestClientErrorsAreNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "shop-1", "secret", time.Second)
	_, err := c.CreatePayout(context.Background(), CreatePayoutInput{Amount: 1_000, Method: "bank_card", Destination: "5555****4444"})
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatal("a 4xx rejection must not look retryable")
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusSucceeded, StatusCanceled, StatusExpired} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusWaitingForCapture} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
