package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"slotify/config"
	"slotify/cron"
	"slotify/database"
	ledgerRepoPkg "slotify/database/repository/ledger"
	providerRepoPkg "slotify/database/repository/provider"
	refundRepoPkg "slotify/database/repository/refund"
	"slotify/handlers"
	"slotify/middleware"
	"slotify/routes"
	"slotify/services/availability"
	"slotify/services/booking"
	"slotify/services/gateway"
	"slotify/services/refund"
	"slotify/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.InitQueueCache()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	provRepo := providerRepoPkg.NewMongoProviderRepo()
	ledgerRepo := ledgerRepoPkg.NewMongoLedgerRepo()
	refRepo := refundRepoPkg.NewMongoRefundRepo()
	if err := provRepo.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure provider indexes: %v", err)
	}
	if err := ledgerRepo.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure ledger indexes: %v", err)
	}
	if err := refRepo.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure refund indexes: %v", err)
	}

	// External clients.
	gatewayClient := gateway.NewClient(
		config.AppConfig.GatewayBaseURL,
		config.AppConfig.GatewayKeyID,
		config.AppConfig.GatewaySecret,
	)
	taskClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer taskClient.Close()

	// services.
	refundCoordinator := &refund.DefaultCoordinator{
		Refunds: refRepo,
		Ledger:  ledgerRepo,
		Gateway: gatewayClient,
		Logger:  logger,
	}

	availabilityResolver := &availability.DefaultResolver{
		Providers: provRepo,
		Ledger:    ledgerRepo,
		Cache:     utils.GetCacheClient(),
		CacheTTL:  config.AvailabilityCacheTTL(),
		Logger:    logger,
	}

	orderIssuer := &booking.DefaultOrderIssuer{
		Providers: provRepo,
		Ledger:    ledgerRepo,
		Gateway:   gatewayClient,
		Logger:    logger,
		HoldTTL:   config.ReservationTTL(),
	}

	paymentVerifier := &booking.DefaultPaymentVerifier{
		Ledger:  ledgerRepo,
		Gateway: gatewayClient,
		Tasks:   taskClient,
		Logger:  logger,
	}

	ledgerService := &booking.DefaultLedgerService{
		Ledger:  ledgerRepo,
		Refunds: refundCoordinator,
		Logger:  logger,
	}

	// Background worker, scheduler, and health monitor.
	cron.InitWorker(refundCoordinator, ledgerRepo)
	utils.StartHealthMonitor(
		[]*redis.Client{utils.GetCacheClient(), utils.GetQueueClient()},
		database.MongoClient,
	)

	// Assemble the handler bundle and register routes.
	handlerBundle := &routes.HandlerBundle{
		Provider:     handlers.NewProviderHandler(provRepo, logger),
		Availability: handlers.NewAvailabilityHandler(availabilityResolver),
		Booking:      handlers.NewBookingHandler(orderIssuer, paymentVerifier, ledgerService, logger),
		Refund:       handlers.NewRefundHandler(refundCoordinator, logger),
	}
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
