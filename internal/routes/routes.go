package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/billing"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/config"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/gateway"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/intent"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/ledger"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/middleware"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/notification"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/reconcile"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/subscription"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes, and returns the
// reconciliation engine so the caller can schedule the orphan sweep on it.
func Setup(app *fiber.App, d Deps) (*reconcile.Engine, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Storage backends: Postgres in real deployments, in-memory for dev.
	var store ledger.Store
	var walletRepo wallet.Repository
	var subRepo subscription.Repository
	var intents intent.Tracker
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		subRepo = subscription.NewPostgresRepository(d.DB)
		intents = intent.NewPostgresTracker(d.DB)
	} else {
		store = ledger.NewInMemory()
		walletRepo = wallet.NewMemoryRepository()
		subRepo = subscription.NewMemoryRepository()
		intents = intent.NewMemoryTracker()
	}

	// Without gateway credentials the static client settles everything
	// instantly, which keeps local flows runnable end to end.
	var gw gateway.Client
	if d.Cfg.GatewayShopID != "" {
		gw = gateway.NewHTTPClient(d.Cfg.GatewayBaseURL, d.Cfg.GatewayShopID, d.Cfg.GatewaySecretKey, d.Cfg.GatewayTimeout)
	} else {
		d.Logger.Warn("gateway credentials missing, using static gateway client")
		gw = gateway.StaticClient{}
	}

	wallets := wallet.NewManager(walletRepo)
	subs := subscription.NewManager(subRepo, subscription.DefaultPlans)
	notifier := notification.NewLoggerNotifier(d.Logger)

	engine := reconcile.NewEngine(intents, store, wallets, subs, gw, notifier, d.Logger)
	svc := billing.NewService(store, wallets, subs, intents, gw, notifier,
		d.Logger, d.Cfg.ReturnURL, d.Cfg.CommissionPercent)
	handler := billing.NewHandler(svc, engine, subs)
	webhook := reconcile.NewWebhookHandler(engine, d.Logger)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// The gateway posts status notifications here without an Idempotency-Key,
	// so the webhook stays outside the idempotency group. Replays are safe:
	// reconciliation is a no-op once the transaction is terminal.
	api.Post("/webhooks/payment", webhook.Handle)

	RegisterBillingRoutes(api, handler, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	return engine, nil
}
