package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/billing"
)

// RegisterBillingRoutes wires the money-movement and read endpoints. Every
// endpoint that moves money sits behind the idempotency middleware.
func RegisterBillingRoutes(r fiber.Router, h *billing.Handler, idem fiber.Handler) {
	money := r.Group("", idem)
	money.Post("/wallets/deposit", h.Deposit)
	money.Post("/wallets/payout", h.Payout)
	money.Post("/purchases", h.Purchase)
	money.Post("/prizes", h.AwardPrize)
	money.Post("/tariffs/purchase", h.PurchaseTariff)
	money.Post("/tariffs/trial", h.ActivateTrial)

	r.Get("/payments/:paymentId/status", h.PollPayment)
	r.Get("/wallets/:ownerKind/:accountId", h.Summary)
	r.Get("/wallets/:ownerKind/:accountId/transactions", h.History)
	r.Get("/subscriptions/:accountId/quota", h.QuotaCheck)
}
