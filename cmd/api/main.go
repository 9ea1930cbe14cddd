package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go-retail-pos/config"
	"go-retail-pos/internal/events"
	"go-retail-pos/internal/handler"
	"go-retail-pos/internal/middleware"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/internal/service"
	"go-retail-pos/internal/ws"
	"go-retail-pos/pkg/cache"
	"go-retail-pos/pkg/database"
	"go-retail-pos/pkg/jwt"
	"go-retail-pos/pkg/logger"
	"go-retail-pos/pkg/metrics"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment: cfg.IsDevelopment(),
		Encoding:      cfg.LogEncoding,
		Level:         cfg.LogLevel,
	})
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Setup Database
	db, err := database.ConnectDB(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("database connection failed", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&model.Product{}, &model.Transaction{}, &model.User{},
		&model.Privilege{}, &model.Role{}, &model.ActivityLog{},
	); err != nil {
		appLogger.Fatal("auto migrate failed", zap.Error(err))
	}

	productRepo := repository.NewProductRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	activityRepo := repository.NewActivityRepo(db)
	checkoutStore := repository.NewCheckoutStore(db, cfg.CheckoutLockTimeout)

	// 3. Seed default privileges, roles, and admin user
	seedPrivilegesRolesAndAdmin(cfg, appLogger, privilegeRepo, roleRepo, userRepo)

	// 4. Realtime hub and event fan-out
	wsHub := ws.NewHub(appLogger)
	go wsHub.Run(ctx)

	publisher := events.NewMulti(appLogger, events.NewHubPublisher(wsHub))
	var closers []io.Closer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaSalesTopic)
		publisher.Add(kafkaPublisher)
		closers = append(closers, kafkaPublisher)
		appLogger.Info("kafka publisher enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaSalesTopic))
	}
	if cfg.RabbitMQURL != "" {
		rabbitPublisher, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			appLogger.Warn("rabbitmq publisher disabled", zap.Error(err))
		} else {
			publisher.Add(rabbitPublisher)
			closers = append(closers, rabbitPublisher)
			appLogger.Info("rabbitmq publisher enabled", zap.String("exchange", cfg.RabbitMQExchange))
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(registry)

	// 5. Dependency Injection (Wiring Layers)
	loc := cfg.Location()
	tokens := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	activityService := service.NewActivityService(activityRepo, loc)
	permissionService := service.NewPermissionService(userRepo)
	invService := service.NewInventoryService(productRepo, txRepo, publisher, appLogger)
	dashService := service.NewDashboardService(txRepo, cfg.LowStockThreshold, loc)
	salesService := service.NewSalesService(txRepo, loc)
	authService := service.NewAuthService(userRepo, tokens, publisher, cfg.SessionIdleTimeout)
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo)

	checkoutService := service.NewCheckoutService(checkoutStore, activityService, publisher, serverMetrics, appLogger)
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			appLogger.Warn("redis unavailable, idempotency keys disabled", zap.Error(err))
		} else {
			checkoutService = service.NewIdempotentCheckout(checkoutService, cache.NewIdempotencyStore(redisClient), cfg.IdempotencyTTL, cfg.CheckoutLockTimeout, serverMetrics, appLogger)
			closers = append(closers, redisClient)
			appLogger.Info("idempotent checkout enabled", zap.String("redis", cfg.RedisAddr))
		}
	}

	invHandler := handler.NewInventoryHandler(invService)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	dashHandler := handler.NewDashboardHandler(dashService)
	salesHandler := handler.NewSalesHandler(salesService)
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(userService)
	activityHandler := handler.NewActivityHandler(activityService)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
	})

	// Middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.Metrics(serverMetrics))

	app.Get("/health", func(c *fiber.Ctx) error {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			return c.Status(503).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok", "ws_clients": wsHub.ClientCount()})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// 7. Routes
	api := app.Group("/api/v1")
	requireAuth := middleware.RequireAuth(tokens, userRepo)
	requirePriv := func(code string) fiber.Handler { return middleware.RequirePrivilege(permissionService, code) }
	logAction := func(action string) fiber.Handler {
		return middleware.LogAction(activityService, appLogger, action)
	}

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Post("/validate-token", authHandler.ValidateToken)
	auth.Post("/heartbeat", requireAuth, authHandler.Heartbeat)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)

	// Dashboard & analytics
	protected.Get("/dashboard/stats", dashHandler.GetDashboardStats)
	protected.Get("/dashboard/monthly-sales", dashHandler.GetMonthlySales)
	protected.Get("/analytics/top-products", dashHandler.GetTopProducts)
	protected.Get("/analytics/sales-over-time", dashHandler.GetSalesOverTime)
	protected.Get("/analytics/stock-levels", dashHandler.GetStockLevels)

	// Products. Checkout records its own activity entry after commit.
	viewProducts := middleware.RequireAnyPrivilege(permissionService, model.PrivViewProducts, model.PrivMakeSales)
	protected.Get("/products", viewProducts, invHandler.GetProducts)
	protected.Get("/products/barcode/:code", viewProducts, invHandler.GetProductByBarcode)
	protected.Post("/products/checkout", requirePriv(model.PrivMakeSales), checkoutHandler.Checkout)
	protected.Post("/products/sell", requirePriv(model.PrivMakeSales), checkoutHandler.Sell)
	protected.Get("/products/:id", viewProducts, invHandler.GetProduct)
	protected.Post("/products", requirePriv(model.PrivEditProducts), logAction(model.ActionCreatedProduct), invHandler.CreateProduct)
	protected.Put("/products/:id", requirePriv(model.PrivEditProducts), logAction(model.ActionUpdatedProduct), invHandler.UpdateProduct)
	protected.Delete("/products/:id", requirePriv(model.PrivEditProducts), logAction(model.ActionDeletedProduct), invHandler.DeleteProduct)

	// Ledger
	protected.Get("/transactions", requirePriv(model.PrivViewTransactions), invHandler.GetTransactions)
	protected.Get("/transactions/:id", requirePriv(model.PrivViewTransactions), invHandler.GetTransaction)
	protected.Get("/sales/me", salesHandler.GetMySales)

	// User Management
	protected.Get("/users", requirePriv(model.PrivViewUsers), userHandler.GetUsers)
	protected.Post("/users", requirePriv(model.PrivManageStaff), logAction(model.ActionCreatedStaff), userHandler.CreateUser)
	protected.Post("/users/privileges", requirePriv(model.PrivAssignPermissions), logAction(model.ActionAssignedPermission), userHandler.GrantPrivilege)
	protected.Delete("/users/privileges", requirePriv(model.PrivAssignPermissions), logAction(model.ActionRevokedPermission), userHandler.RevokePrivilege)
	protected.Get("/users/:id", requirePriv(model.PrivViewUsers), userHandler.GetUser)
	protected.Put("/users/:id", requirePriv(model.PrivManageStaff), logAction(model.ActionUpdatedStaff), userHandler.UpdateUser)
	protected.Delete("/users/:id", requirePriv(model.PrivManageStaff), logAction(model.ActionDeletedStaff), userHandler.DeleteUser)
	protected.Get("/users/:id/privileges", requirePriv(model.PrivViewUsers), userHandler.GetUserPrivileges)
	protected.Put("/users/:id/privileges", requirePriv(model.PrivAssignPermissions), logAction(model.ActionReplacedPermissions), userHandler.UpdateUserPrivileges)
	protected.Get("/users/:id/sales", requirePriv(model.PrivViewTransactions), salesHandler.GetStaffSales)

	protected.Get("/roles", requirePriv(model.PrivViewUsers), roleHandler.GetRoles)
	protected.Get("/privileges", requirePriv(model.PrivViewUsers), roleHandler.GetPrivileges)

	// Activity log
	activity := protected.Group("/activity", requirePriv(model.PrivViewActivity))
	activity.Get("/logs", activityHandler.GetLogs)
	activity.Get("/users", activityHandler.GetUsers)
	activity.Get("/actions", activityHandler.GetActions)

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		select {
		case wsHub.Register <- c:
		case <-ctx.Done():
			return
		}
		defer func() {
			select {
			case wsHub.Unregister <- c:
			case <-ctx.Done():
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			appLogger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()
	appLogger.Info("server started", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))

	<-ctx.Done()
	appLogger.Info("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("server forced to shutdown", zap.Error(err))
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			appLogger.Warn("close dependency", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	appLogger.Info("server exited")
}

// seedPrivilegesRolesAndAdmin creates default privileges, roles, and the admin user if they don't exist
func seedPrivilegesRolesAndAdmin(
	cfg config.Config,
	log logger.ZapLogger,
	privilegeRepo repository.PrivilegeRepository,
	roleRepo repository.RoleRepository,
	userRepo repository.UserRepository,
) {
	if err := privilegeRepo.SeedDefaults(); err != nil {
		log.Warn("failed to seed privileges", zap.Error(err))
	}
	if err := roleRepo.SeedDefaults(); err != nil {
		log.Warn("failed to seed roles", zap.Error(err))
	}

	allPrivileges, err := privilegeRepo.FindAll()
	if err != nil {
		log.Warn("failed to load privileges", zap.Error(err))
		return
	}

	// ADMIN gets ALL privileges for display; it bypasses checks regardless.
	adminRole, err := roleRepo.FindByCode(model.RoleAdmin)
	if err == nil && len(adminRole.Privileges) == 0 {
		if err := roleRepo.ReplacePrivileges(adminRole, allPrivileges); err != nil {
			log.Warn("failed to assign admin privileges", zap.Error(err))
		}
	}

	staffRole, err := roleRepo.FindByCode(model.RoleStaff)
	if err == nil && len(staffRole.Privileges) == 0 {
		staffPrivileges, err := privilegeRepo.FindByCodes(model.DefaultStaffPrivileges)
		if err == nil {
			err = roleRepo.ReplacePrivileges(staffRole, staffPrivileges)
		}
		if err != nil {
			log.Warn("failed to assign staff privileges", zap.Error(err))
		}
	}

	_, err = userRepo.FindByEmail(cfg.SeedAdminEmail)
	if err == nil {
		return
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		log.Warn("failed to look up seed admin", zap.Error(err))
		return
	}
	if adminRole == nil {
		log.Warn("admin role missing, seed admin not created")
		return
	}

	admin := &model.User{
		Email:    cfg.SeedAdminEmail,
		FullName: "Administrator",
		RoleID:   &adminRole.ID,
		IsActive: true,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"

	if err := admin.SetPassword(cfg.SeedAdminPassword); err != nil {
		log.Warn("failed to hash admin password", zap.Error(err))
		return
	}
	if err := userRepo.Create(admin); err != nil {
		log.Warn("failed to create admin user", zap.Error(err))
		return
	}
	log.Info("admin user created", zap.String("email", cfg.SeedAdminEmail))
}
