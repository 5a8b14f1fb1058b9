package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"gridmenu/internal/config"
	"gridmenu/internal/handlers"
	"gridmenu/internal/logging"
	"gridmenu/internal/middleware"
	"gridmenu/internal/services"
	"gridmenu/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting GridMenu Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, DataDir: %s, ContainerSize: %d)", cfg.Port, cfg.DataDir, cfg.ContainerSize)

	// Load user-facing message strings (optional overrides)
	messages, err := config.LoadMessages(cfg.MessagesFile)
	if err != nil {
		log.Fatalf("❌ Failed to load messages: %v", err)
	}

	// Initialize JWT authentication
	var jwtAuth *auth.LocalJWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewLocalJWTAuth(cfg.JWTSecret, 0, 0)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT authentication: %v", err)
		}
		log.Println("✅ Local JWT authentication initialized")
	} else {
		log.Println("⚠️  JWT_SECRET not set - auth bypass only valid in development")
	}

	// Initialize permission registry
	permService := services.NewPermissionService()
	permService.RegisterCommonPermissions()

	// Initialize the definition catalog and load it from disk
	catalogService, err := services.NewCatalogService(cfg.DataDir, cfg.ContainerSize, permService)
	if err != nil {
		log.Fatalf("❌ Failed to initialize catalog: %v", err)
	}
	menus, loadErrs := catalogService.Load()
	for _, e := range loadErrs {
		log.Printf("⚠️  %s", e)
	}
	log.Printf("✅ Catalog loaded: %d menus", len(menus))

	// Initialize connection manager and the cooperative engine loop
	connManager := services.NewConnectionManager()
	loopService := services.NewLoopService()
	loopService.Start()

	// Initialize placeholder evaluator
	evaluator := services.NewPlaceholderService(cfg.EvaluatorEnabled)
	if !evaluator.Available() {
		log.Println("⚠️  Placeholder evaluator disabled: condition-gated menus will deny")
	}

	// Initialize the WebSocket gateway and session engine. The gateway is
	// the session engine's host bridge; the dispatcher closes the cycle.
	wsHandler := handlers.NewWebSocketHandler(connManager, loopService, messages, cfg.ClickRatePerSecond, cfg.ClickBurst)
	sessionService := services.NewSessionService(catalogService, permService, evaluator, connManager, wsHandler)
	wsHandler.SetSessionService(sessionService)
	dispatchService := services.NewDispatchService(sessionService, evaluator, wsHandler)
	sessionService.SetDispatcher(dispatchService)
	services.RegisterBuiltinProviders(evaluator, connManager, permService, sessionService)

	// Initialize Prometheus metrics
	services.InitMetrics(connManager, sessionService)
	log.Println("✅ Prometheus metrics initialized")

	// Watch definition files for changes
	catalogWatcher, err := services.NewCatalogWatcher(catalogService, sessionService, loopService)
	if err != nil {
		log.Printf("⚠️  File watching disabled: %v", err)
		catalogWatcher = nil
	} else {
		catalogWatcher.Start()
	}

	// Start the session janitor
	janitor, err := services.NewJanitorService(sessionService, loopService, cfg.JanitorInterval)
	if err != nil {
		log.Fatalf("❌ Failed to initialize janitor: %v", err)
	}
	if err := janitor.Start(); err != nil {
		log.Fatalf("❌ Failed to start janitor: %v", err)
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "GridMenu v1.0",
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("gridmenu")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Load rate limiting configuration
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Admin=%d/min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.AdminMax,
		rateLimitConfig.WebSocketMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		// Default to localhost for development
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard origins.
	allowCredentials := allowedOrigins != "*"

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowCredentials,
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	// Global API rate limiter - first line of DDoS defense
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))
	log.Println("🛡️  [RATE-LIMIT] Global API rate limiter enabled")

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(connManager, sessionService, catalogService)
	adminHandler := handlers.NewAdminHandler(catalogService, sessionService, permService, connManager, loopService)

	// Health check (no auth, no rate limit)
	app.Get("/health", healthHandler.Handle)

	// Admin surface (auth + admin role + per-user rate limit)
	admin := app.Group("/api/admin")
	admin.Use(middleware.LocalAuthMiddleware(jwtAuth))
	admin.Use(middleware.AdminMiddleware())
	admin.Use(middleware.AdminRateLimiter(rateLimitConfig))
	admin.Post("/reload", adminHandler.Reload)
	admin.Post("/force-reload", adminHandler.ForceReload)
	admin.Post("/open", adminHandler.Open)
	admin.Get("/menus", adminHandler.ListMenus)
	admin.Post("/permissions/grant", adminHandler.GrantPermission)
	admin.Post("/permissions/revoke", adminHandler.RevokePermission)
	admin.Get("/permissions", adminHandler.ListPermissions)

	// WebSocket route (requires auth)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			c.Locals("client_ip", c.IP())
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	wsConnectionLimiter := middleware.WebSocketRateLimiter(rateLimitConfig)
	wsConfig := websocket.Config{
		Origins: strings.Split(allowedOrigins, ","),
	}

	app.Use("/ws/menu", wsConnectionLimiter)
	app.Use("/ws/menu", middleware.LocalAuthMiddleware(jwtAuth))
	app.Get("/ws/menu", websocket.New(wsHandler.Handle, wsConfig))

	// Start server
	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("🔗 WebSocket endpoint: ws://localhost:%s/ws/menu", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if catalogWatcher != nil {
			catalogWatcher.Stop()
		}

		if err := janitor.Stop(); err != nil {
			log.Printf("⚠️ Error stopping janitor: %v", err)
		}

		// Close every open session through the loop, then stop the loop
		loopService.RunSync(sessionService.CloseAll)
		loopService.Stop()

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
