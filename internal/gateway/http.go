package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPClient talks to a YooKassa-style payments API over HTTPS with basic
// auth and per-request idempotence keys.
type HTTPClient struct {
	baseURL  string
	shopID   string
	secret   string
	client   *http.Client
	currency string
}

// NewHTTPClient constructs a gateway connector.
func NewHTTPClient(baseURL, shopID, secret string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		shopID:   shopID,
		secret:   secret,
		client:   &http.Client{Timeout: timeout},
		currency: "RUB",
	}
}

type amountPayload struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmationPayload struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type paymentPayload struct {
	ID           string              `json:"id"`
	Status       string              `json:"status"`
	Amount       amountPayload       `json:"amount"`
	Description  string              `json:"description"`
	Confirmation confirmationPayload `json:"confirmation"`
}

type payoutPayload struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Amount amountPayload `json:"amount"`
}

// CreatePayment opens a payment at the gateway and returns the confirmation
// URL the caller should be redirected to.
func (c *HTTPClient) CreatePayment(ctx context.Context, input CreatePaymentInput) (Payment, error) {
	currency := input.Currency
	if currency == "" {
		currency = c.currency
	}
	body := map[string]any{
		"amount":       amountPayload{Value: minorToValue(input.Amount), Currency: currency},
		"description":  input.Description,
		"metadata":     input.Metadata,
		"capture":      true,
		"confirmation": confirmationPayload{Type: "redirect", ReturnURL: input.ReturnURL},
	}

	var resp paymentPayload
	if err := c.do(ctx, http.MethodPost, "/payments", body, &resp); err != nil {
		return Payment{}, err
	}
	return paymentFromPayload(resp)
}

// GetPayment queries the current payment status.
func (c *HTTPClient) GetPayment(ctx context.Context, id string) (Payment, error) {
	var resp paymentPayload
	if err := c.do(ctx, http.MethodGet, "/payments/"+id, nil, &resp); err != nil {
		return Payment{}, err
	}
	return paymentFromPayload(resp)
}

// CreatePayout pushes funds to the given destination.
func (c *HTTPClient) CreatePayout(ctx context.Context, input CreatePayoutInput) (Payout, error) {
	currency := input.Currency
	if currency == "" {
		currency = c.currency
	}
	body := map[string]any{
		"amount":      amountPayload{Value: minorToValue(input.Amount), Currency: currency},
		"description": input.Description,
		"payout_destination_data": map[string]string{
			"type":  input.Method,
			"value": input.Destination,
		},
	}

	var resp payoutPayload
	if err := c.do(ctx, http.MethodPost, "/payouts", body, &resp); err != nil {
		return Payout{}, err
	}
	return payoutFromPayload(resp)
}

// GetPayout queries the current payout status.
func (c *HTTPClient) GetPayout(ctx context.Context, id string) (Payout, error) {
	var resp payoutPayload
	if err := c.do(ctx, http.MethodGet, "/payouts/"+id, nil, &resp); err != nil {
		return Payout{}, err
	}
	return payoutFromPayload(resp)
}

func payoutFromPayload(p payoutPayload) (Payout, error) {
	amount, err := valueToMinor(p.Amount.Value)
	if err != nil {
		return Payout{}, err
	}
	return Payout{ID: p.ID, Status: Status(p.Status), Amount: amount}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.shopID, c.secret)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Idempotence-Key", uuid.NewString())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway rejected %s %s: status %d", method, path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func paymentFromPayload(p paymentPayload) (Payment, error) {
	amount, err := valueToMinor(p.Amount.Value)
	if err != nil {
		return Payment{}, err
	}
	return Payment{
		ID:              p.ID,
		Status:          Status(p.Status),
		Amount:          amount,
		Description:     p.Description,
		ConfirmationURL: p.Confirmation.ConfirmationURL,
	}, nil
}

// minorToValue renders kopecks as the gateway's "123.45" decimal string.
func minorToValue(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

func valueToMinor(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	whole, frac, _ := strings.Cut(value, ".")
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse gateway amount %q: %w", value, err)
	}
	var minor int64
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse gateway amount %q: %w", value, err)
		}
	}
	if major < 0 || strings.HasPrefix(whole, "-") {
		return major*100 - minor, nil
	}
	return major*100 + minor, nil
}
