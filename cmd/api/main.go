package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "labinventory/api/swagger" // swagger docs
	"labinventory/internal/auth"
	"labinventory/internal/config"
	"labinventory/internal/database"
	"labinventory/internal/events"
	"labinventory/internal/handler"
	"labinventory/internal/logger"
	"labinventory/internal/metrics"
	"labinventory/internal/middleware"
	"labinventory/internal/repository"
	"labinventory/internal/service"
	"labinventory/internal/websocket"
	"labinventory/pkg/rbac"
	"labinventory/pkg/whoami"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const tokenIssuer = "labinventory"

// @title           Lab Inventory API
// @version         1.0
// @description     Lab inventory service: permission catalog, stock ledger and goods receipts.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	envErr := godotenv.Load("configs/.env")

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Configuration error: %v", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil {
		log.Info("No configs/.env file found, using the process environment")
	}
	gin.SetMode(cfg.GinMode)

	catalog := rbac.Default()
	if cfg.CatalogFile != "" {
		catalog, err = rbac.LoadFile(cfg.CatalogFile)
		if err != nil {
			log.WithError(err).Fatal("Failed to load permission catalog")
		}
	}
	log.WithField("version", catalog.Version()).Info("Permission catalog loaded")

	db, err := database.NewConnection(cfg.DSN(), log, !cfg.IsRelease())
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	log.Info("Connected to PostgreSQL successfully.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log, m)
	go wsHub.Run(ctx)

	var publisher events.Publisher = events.NewHubPublisher(wsHub, m)
	if cfg.Redis.URL != "" {
		redisClient, err := events.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Fatal("Redis connection failed")
		}
		defer redisClient.Close()

		publisher = events.NewRedisPublisher(redisClient, cfg.Redis.Channel, m)
		relay := events.NewRedisRelay(redisClient, cfg.Redis.Channel, wsHub, log)
		go func() {
			if err := relay.Run(ctx, nil); err != nil {
				log.WithError(err).Error("Redis relay stopped")
			}
		}()
	}
	publisher = events.NewLoggingPublisher(publisher, log)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, tokenIssuer, cfg.Auth.TokenTTL)
	if err != nil {
		log.WithError(err).Fatal("Failed to create token manager")
	}

	var resolver auth.RoleResolver = auth.NewStoreResolver(userRepo)
	if cfg.Auth.IdentityURL != "" {
		resolver = auth.NewHTTPResolver(whoami.NewClient(cfg.Auth.IdentityURL, cfg.Auth.RoleLookupTimeout))
		log.WithField("url", cfg.Auth.IdentityURL).Info("Resolving roles through remote identity service")
	}
	guard := middleware.NewGuard(tokens, resolver, catalog, cfg.Auth.RoleLookupTimeout, m, log)
	wsHub.SetAuthorizer(func(ctx context.Context, userID, token string) error {
		return guard.Recheck(ctx, auth.Subject{UserID: userID, Token: token}, rbac.ReadInventory)
	}, cfg.Auth.WSRecheckInterval)

	ledger := service.NewStockLedger(inventoryRepo, productRepo, ledgerRepo, publisher, m, log)
	userService := service.NewUserService(userRepo, auditRepo, txManager, tokens, catalog, log)
	inventoryService := service.NewInventoryService(inventoryRepo, ledgerRepo, auditRepo, txManager, ledger, log)
	productService := service.NewProductService(productRepo, inventoryRepo, auditRepo, txManager, ledger, log)
	receiptService := service.NewReceiptService(receiptRepo, auditRepo, txManager, ledger)
	auditService := service.NewAuditService(auditRepo)

	// Initialize Handlers
	cookies := middleware.CookieOptions{Secure: cfg.IsRelease()}
	userHandler := handler.NewUserHandler(userService, guard, cookies, tokens.TTL())
	inventoryHandler := handler.NewInventoryHandler(inventoryService, guard)
	productHandler := handler.NewProductHandler(productService, guard)
	receiptHandler := handler.NewReceiptHandler(receiptService, guard)
	roleHandler := handler.NewRoleHandler(catalog, guard)
	auditHandler := handler.NewAuditHandler(auditService, guard)

	// Set up Gin Router
	router := gin.New()
	router.Use(gin.Recovery(), logger.RequestLogger(log), m.Middleware())
	// unknown routes must look exactly like guard denials
	router.NoRoute(middleware.NotFound())
	router.NoMethod(middleware.NotFound())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", logger.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// WebSocket endpoint
	router.GET("/ws", middleware.WebsocketToken(), guard.RequirePermission(rbac.ReadInventory), wsHub.ServeWs)

	// API Routing
	userHandler.RegisterRoutes(router.Group(""))
	inventoryHandler.RegisterRoutes(router.Group(""))
	productHandler.RegisterRoutes(router.Group(""))
	receiptHandler.RegisterRoutes(router.Group(""))
	roleHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Server stopped")
}
