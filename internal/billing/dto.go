package billing

// DepositRequest captures data to open a wallet top-up.
type DepositRequest struct {
	AccountID string `json:"account_id"`
	OwnerKind string `json:"owner_kind"`
	Amount    int64  `json:"amount_kopecks"`
}

// TariffPurchaseRequest captures data to buy a tariff plan.
type TariffPurchaseRequest struct {
	AccountID string `json:"account_id"`
	PlanID    string `json:"plan_id"`
}

// TrialRequest captures data to activate the trial plan.
type TrialRequest struct {
	AccountID string `json:"account_id"`
}

// PayoutRequest captures data to withdraw funds through the gateway.
type PayoutRequest struct {
	AccountID   string `json:"account_id"`
	OwnerKind   string `json:"owner_kind"`
	Amount      int64  `json:"amount_kopecks"`
	Method      string `json:"method"`
	Destination string `json:"destination"`
}

// PurchaseRequest captures a wallet-funded product sale.
type PurchaseRequest struct {
	BuyerID  string `json:"buyer_id"`
	SellerID string `json:"seller_id"`
	Amount   int64  `json:"amount_kopecks"`
	Title    string `json:"title"`
}

// PrizeRequest captures a lottery prize credit.
type PrizeRequest struct {
	AccountID   string `json:"account_id"`
	Amount      int64  `json:"amount_kopecks"`
	Description string `json:"description"`
}

// PaymentResponse is returned for gateway-funded operations.
type PaymentResponse struct {
	PaymentID       string `json:"payment_id"`
	TransactionID   string `json:"transaction_id"`
	ConfirmationURL string `json:"confirmation_url"`
	AmountKopecks   int64  `json:"amount_kopecks"`
}

// PayoutResponse is returned for payout requests.
type PayoutResponse struct {
	PayoutID      string `json:"payout_id"`
	TransactionID string `json:"transaction_id"`
	AmountKopecks int64  `json:"amount_kopecks"`
}

// SummaryResponse is the wallet snapshot.
type SummaryResponse struct {
	WalletID         string `json:"wallet_id"`
	OwnerKind        string `json:"owner_kind"`
	BalanceKopecks   int64  `json:"balance_kopecks"`
	ReservedKopecks  int64  `json:"reserved_kopecks"`
	AvailableKopecks int64  `json:"available_kopecks"`
}

// TransactionResponse is one history entry.
type TransactionResponse struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	AmountKopecks int64  `json:"amount_kopecks"`
	Status        string `json:"status"`
	Description   string `json:"description,omitempty"`
	CreatedAt     string `json:"created_at"`
	SettledAt     string `json:"settled_at,omitempty"`
}
