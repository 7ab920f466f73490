package routes

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/internal/gateway"
	"github.com/autolumiku/whatsapp-backend/internal/handlers"
	"github.com/autolumiku/whatsapp-backend/internal/middleware"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, gw gateway.Client, webhook *handlers.WebhookHandler) {
	health := handlers.NewHealthHandler(os.Getenv("APP_VERSION"), store)
	admin := handlers.NewAdminHandler(store, gw)

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Autolumiku WhatsApp Backend",
			"endpoints": fiber.Map{
				"health":  "/health",
				"webhook": "/api/webhook/whatsapp",
				"admin":   "/api/admin",
			},
		})
	})

	app.Get("/health", health.Check)

	// ========== WEBHOOK ROUTES ==========
	// The gateway calls these; signature validation is environment-aware
	// so local tunnels can skip it.
	webhooks := app.Group("/api/webhook")
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		webhooks.Post("/whatsapp", webhook.HandleGatewayEvent)
		webhooks.Post("/whatsapp/:tenantID", webhook.HandleGatewayEvent)
		zap.L().Warn("gateway webhook signature validation DISABLED")
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateGatewaySignature(), webhook.HandleGatewayEvent)
		webhooks.Post("/whatsapp/:tenantID", middleware.ValidateGatewaySignature(), webhook.HandleGatewayEvent)
	}

	// ========== ADMIN ROUTES ==========
	api := app.Group("/api/admin", middleware.RequireAPIKey())

	api.Get("/overview", admin.GetPlatformOverview)

	api.Post("/tenants", admin.CreateTenant)
	api.Get("/tenants", admin.GetTenants)
	api.Get("/tenants/:tenantID", admin.GetTenant)
	api.Patch("/tenants/:tenantID", admin.UpdateTenant)

	api.Post("/tenants/:tenantID/staff", admin.AddStaff)
	api.Get("/tenants/:tenantID/staff", admin.GetStaff)

	api.Post("/tenants/:tenantID/accounts", admin.AddGatewayAccount)
	api.Get("/tenants/:tenantID/accounts", admin.GetGatewayAccounts)

	api.Get("/tenants/:tenantID/vehicles", admin.GetVehicles)
	api.Get("/tenants/:tenantID/vehicles/:vehicleID", admin.GetVehicle)
	api.Get("/tenants/:tenantID/stats", admin.GetInventoryStats)

	api.Get("/tenants/:tenantID/commands", admin.GetCommandLog)
	api.Get("/tenants/:tenantID/conversations/:phone", admin.GetConversation)
	api.Get("/tenants/:tenantID/conversations/:phone/messages", admin.GetConversationMessages)

	// Feeds a hand-written message through the pipeline, for onboarding
	// checks before the gateway is pointed here.
	api.Post("/tenants/:tenantID/simulate", webhook.HandleSimulateMessage)
}
