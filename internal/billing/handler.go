package billing

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/gateway"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/ledger"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/reconcile"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/subscription"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/wallet"
)

// Handler exposes the billing HTTP endpoints consumed by the UI layer.
type Handler struct {
	service *Service
	engine  *reconcile.Engine
	subs    *subscription.Manager
}

// NewHandler constructs a billing handler.
func NewHandler(service *Service, engine *reconcile.Engine, subs *subscription.Manager) *Handler {
	return &Handler{service: service, engine: engine, subs: subs}
}

// Deposit opens a wallet top-up and returns the gateway confirmation URL.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	kind, err := parseOwnerKind(req.OwnerKind)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.RequestDeposit(c.UserContext(), req.AccountID, kind, req.Amount)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toPaymentResponse(result))
}

// PurchaseTariff opens a gateway payment for a tariff plan.
func (h *Handler) PurchaseTariff(c *fiber.Ctx) error {
	var req TariffPurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.RequestTariffPurchase(c.UserContext(), req.AccountID, req.PlanID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toPaymentResponse(result))
}

// ActivateTrial grants the one-off trial plan.
func (h *Handler) ActivateTrial(c *fiber.Ctx) error {
	var req TrialRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	state, err := h.service.RequestTrial(c.UserContext(), req.AccountID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"plan_id":    state.PlanID,
		"expires_at": state.ExpiresAt.Format(time.RFC3339),
	})
}

// Payout moves funds out through the gateway.
func (h *Handler) Payout(c *fiber.Ctx) error {
	var req PayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	kind, err := parseOwnerKind(req.OwnerKind)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.RequestPayout(c.UserContext(), req.AccountID, kind, req.Amount, req.Method, req.Destination)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(PayoutResponse{
		PayoutID:      result.ExternalPayoutID,
		TransactionID: result.TransactionID,
		AmountKopecks: result.Amount,
	})
}

// Purchase settles a wallet-funded product sale.
func (h *Handler) Purchase(c *fiber.Ctx) error {
	var req PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.PurchaseProduct(c.UserContext(), req.BuyerID, req.SellerID, req.Amount, req.Title)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"buyer_transaction_id":  result.BuyerTransactionID,
		"seller_transaction_id": result.SellerTransactionID,
		"commission_kopecks":    result.Commission,
	})
}

// AwardPrize credits a lottery prize.
func (h *Handler) AwardPrize(c *fiber.Ctx) error {
	var req PrizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.AwardGamePrize(c.UserContext(), req.AccountID, req.Amount, req.Description)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"transaction_id": tx.ID})
}

// PollPayment is hit when the caller returns from the gateway redirect. It
// queries the gateway and reconciles with the answer.
func (h *Handler) PollPayment(c *fiber.Ctx) error {
	paymentID := c.Params("paymentId")
	outcome, err := h.engine.Poll(c.UserContext(), paymentID)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			return fiber.NewError(http.StatusServiceUnavailable, "gateway unavailable, retry later")
		}
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"payment_id": paymentID, "outcome": outcome})
}

// Summary returns the wallet snapshot.
func (h *Handler) Summary(c *fiber.Ctx) error {
	kind, err := parseOwnerKind(c.Params("ownerKind"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	summary, err := h.service.WalletSummary(c.UserContext(), c.Params("accountId"), kind)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(SummaryResponse{
		WalletID:         summary.WalletID,
		OwnerKind:        string(summary.OwnerKind),
		BalanceKopecks:   summary.Balance,
		ReservedKopecks:  summary.Reserved,
		AvailableKopecks: summary.Available,
	})
}

// History returns the wallet's transactions, oldest first.
func (h *Handler) History(c *fiber.Ctx) error {
	kind, err := parseOwnerKind(c.Params("ownerKind"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	txs, err := h.service.TransactionHistory(c.UserContext(), c.Params("accountId"), kind)
	if err != nil {
		return mapError(err)
	}

	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp := TransactionResponse{
			ID:            tx.ID,
			Kind:          string(tx.Kind),
			AmountKopecks: tx.Amount,
			Status:        string(tx.Status),
			Description:   tx.Description,
			CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
		}
		if tx.SettledAt != nil {
			resp.SettledAt = tx.SettledAt.Format(time.RFC3339)
		}
		out = append(out, resp)
	}
	return c.Status(http.StatusOK).JSON(out)
}

// QuotaCheck reports whether the account may list another product.
func (h *Handler) QuotaCheck(c *fiber.Ctx) error {
	decision, err := h.subs.CanAddProduct(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"allowed": decision.Allowed,
		"reason":  decision.Reason,
	})
}

func parseOwnerKind(raw string) (wallet.OwnerKind, error) {
	switch wallet.OwnerKind(raw) {
	case wallet.OwnerBuyer:
		return wallet.OwnerBuyer, nil
	case wallet.OwnerSeller:
		return wallet.OwnerSeller, nil
	default:
		return "", fmt.Errorf("owner_kind must be %q or %q", wallet.OwnerBuyer, wallet.OwnerSeller)
	}
}

func toPaymentResponse(result PaymentResult) PaymentResponse {
	return PaymentResponse{
		PaymentID:       result.ExternalPaymentID,
		TransactionID:   result.TransactionID,
		ConfirmationURL: result.ConfirmationURL,
		AmountKopecks:   result.Amount,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return fiber.NewError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, subscription.ErrTrialAlreadyUsed):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, subscription.ErrUnknownPlan), errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrUnavailable):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	case errors.Is(err, wallet.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
