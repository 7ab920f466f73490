package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/database"
	"github.com/autolumiku/whatsapp-backend/internal/config"
	"github.com/autolumiku/whatsapp-backend/internal/events"
	"github.com/autolumiku/whatsapp-backend/internal/gateway"
	"github.com/autolumiku/whatsapp-backend/internal/handlers"
	"github.com/autolumiku/whatsapp-backend/internal/identity"
	"github.com/autolumiku/whatsapp-backend/internal/jobs"
	"github.com/autolumiku/whatsapp-backend/internal/logging"
	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/routes"
	"github.com/autolumiku/whatsapp-backend/internal/services"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

func main() {
	// Load .env for local development; Cloud Run injects everything.
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			_ = godotenv.Load("environments/.env.development")
		}
	}

	log := logging.Setup()
	defer func() { _ = log.Sync() }()

	if err := models.InitIDGenerator(config.GetenvInt64("SNOWFLAKE_NODE", 1)); err != nil {
		log.Fatal("id generator init failed", zap.Error(err))
	}

	// Storage
	var store storage.Store
	if config.GetenvBool("USE_MEMORY_STORE", false) {
		log.Warn("using in-memory storage (not for production)")
		store = storage.NewMemoryStore()
	} else {
		if err := database.Connect(); err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		if err := database.Migrate(); err != nil {
			log.Fatal("database migration failed", zap.Error(err))
		}
		store = storage.NewDatabaseStore(database.DB)
	}
	storage.SetStore(store)

	// Outbound gateway client
	gatewayClient := gateway.NewHTTPClient(
		config.Getenv("GATEWAY_BASE_URL", "http://localhost:3000"),
		os.Getenv("GATEWAY_API_KEY"),
	)

	// Event bus with the tenant webhook forwarder; AMQP fan-out is
	// optional and only wired when a broker URL is configured.
	bus := events.NewBus()
	forwarder, err := events.NewForwarder(store, config.GetenvInt("WEBHOOK_WORKERS", 8))
	if err != nil {
		log.Fatal("event forwarder init failed", zap.Error(err))
	}
	if err := forwarder.Register(bus); err != nil {
		log.Fatal("event forwarder register failed", zap.Error(err))
	}

	var amqpPublisher *events.AMQPPublisher
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		amqpPublisher, err = events.NewAMQPPublisher(amqpURL, config.Getenv("AMQP_EXCHANGE", "autolumiku.events"))
		if err != nil {
			log.Fatal("amqp publisher init failed", zap.Error(err))
		}
		if err := amqpPublisher.Register(bus); err != nil {
			log.Fatal("amqp publisher register failed", zap.Error(err))
		}
		log.Info("amqp event fan-out enabled")
	}

	// Vehicle extraction: AI service first when configured, regex
	// fallback always.
	var extractor services.VehicleExtractor
	if aiURL := os.Getenv("AI_EXTRACTOR_URL"); aiURL != "" {
		extractor = services.NewHTTPExtractor(aiURL)
		log.Info("AI vehicle extractor enabled", zap.String("url", aiURL))
	}

	// Identity collision rules, file-overridable per deployment.
	rules := identity.DefaultRuleTable()
	if path := os.Getenv("IDENTITY_RULES_FILE"); path != "" {
		loaded, err := identity.LoadRuleTable(path)
		if err != nil {
			log.Warn("identity rules file unreadable, using defaults",
				zap.String("path", path), zap.Error(err))
		} else {
			rules = loaded
			log.Info("identity rules loaded", zap.String("path", path))
		}
	}

	orchestrator := services.NewOrchestrator(store, gatewayClient, bus, extractor, services.NewRuleBasedClassifier(), rules)
	reconciler := gateway.NewReconciler(store, gatewayClient, config.GetenvBool("RECONCILE_GLOBAL_SINGLE", true))
	webhookHandler := handlers.NewWebhookHandler(store, reconciler, orchestrator, bus)

	scheduler := jobs.NewScheduler(store, gatewayClient, bus)
	if config.GetenvBool("ENABLE_JOBS", true) {
		if err := scheduler.Start(); err != nil {
			log.Fatal("job scheduler start failed", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{
		AppName: "Autolumiku WhatsApp Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, store, gatewayClient, webhookHandler)

	port := config.Getenv("PORT", "8080")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutting down")
		scheduler.Stop()
		if amqpPublisher != nil {
			_ = amqpPublisher.Close()
		}
		forwarder.Release()
		_ = app.Shutdown()
	}()

	log.Info("starting server",
		zap.String("port", port),
		zap.Bool("memory_store", config.GetenvBool("USE_MEMORY_STORE", false)))
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
