package notification

import (
	"context"
	"log/slog"
)

const (
	// KindDepositCredited indicates a wallet deposit settled.
	KindDepositCredited = "deposit_credited"
	// KindPayoutFailed indicates a payout was rejected or canceled by the gateway.
	KindPayoutFailed = "payout_failed"
	// KindPayoutSent indicates a payout settled.
	KindPayoutSent = "payout_sent"
	// KindTariffActivated indicates a tariff or trial became active.
	KindTariffActivated = "tariff_activated"
	// KindPrizeAwarded indicates a lottery prize was credited.
	KindPrizeAwarded = "prize_awarded"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
