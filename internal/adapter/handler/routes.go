package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/jugnudev/JugnuInitial-sub008/internal/adapter/middleware"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/loyalty"
)

// Keys is what the HTTP layer needs from the store for API keys.
type Keys interface {
	KeyStore
	middleware.KeyLookup
}

type RouterConfig struct {
	Service    *loyalty.Service
	Keys       Keys
	AdminToken string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the fiber app with every route of the loyalty API.
func NewRouter(cfg RouterConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	transactionHandler := &TransactionHandler{Service: cfg.Service}
	merchantHandler := &MerchantHandler{Service: cfg.Service}
	accountHandler := &AccountHandler{Service: cfg.Service, Keys: cfg.Keys}

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/v1")

	// Public
	api.Get("/merchants", merchantHandler.ListParticipating)

	// Customer
	user := middleware.UserIdentity()
	api.Get("/wallet", user, transactionHandler.GetWallet)
	api.Get("/wallet/transactions", user, transactionHandler.GetHistory)
	api.Post("/redeem", user, middleware.Idempotency(), transactionHandler.Redeem)

	// Merchant
	merchant := middleware.Protected(cfg.Keys)
	api.Get("/merchants/:id/config", merchant, merchantHandler.GetConfig)
	api.Patch("/merchants/:id/config", merchant, merchantHandler.UpdateConfig)
	api.Post("/merchants/:id/issue", merchant, middleware.Idempotency(), transactionHandler.Issue)

	// Operator
	admin := api.Group("/admin", middleware.AdminOnly(cfg.AdminToken))
	admin.Post("/merchants", accountHandler.CreateMerchant)
	admin.Post("/merchants/:id/keys", accountHandler.GenerateKey)
	admin.Post("/merchants/:id/provision", accountHandler.Provision)
	admin.Post("/merchants/:id/topup", accountHandler.TopUp)
	admin.Patch("/merchants/:id/status", accountHandler.SetStatus)
	admin.Post("/users", accountHandler.CreateUser)
	admin.Get("/users/:id/audit", accountHandler.AuditWallet)

	return app
}
