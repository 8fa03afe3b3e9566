package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/tradepost/tradepost-api/internal/auth"
	"github.com/tradepost/tradepost-api/internal/catalog"
	"github.com/tradepost/tradepost-api/internal/database"
	"github.com/tradepost/tradepost-api/internal/fulfillment"
	"github.com/tradepost/tradepost-api/internal/gateway"
	"github.com/tradepost/tradepost-api/internal/negotiation"
	"github.com/tradepost/tradepost-api/internal/notification"
	"github.com/tradepost/tradepost-api/internal/reconciliation"
	"github.com/tradepost/tradepost-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// main initializes and runs the marketplace API server with graceful
// shutdown support. It sets up all required services, database connections,
// and API routes.
func main() {
	dbPath := getEnv("DATABASE_PATH", "tradepost.db")
	jwtSecret := getEnv("JWT_SECRET", "tradepost-secret-key")
	frontendURL := getEnv("FRONTEND_URL", "http://localhost:3000")

	// Initialize database
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(db, jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)

	notificationService := notification.NewService(db)
	notificationHandlers := notification.NewGinHandlers(notificationService)

	catalogService := catalog.NewService(db)
	catalogHandlers := catalog.NewGinHandlers(catalogService)

	negotiationService := negotiation.NewService(db, notificationService)
	negotiationHandlers := negotiation.NewGinHandlers(negotiationService)

	checkoutClient := gateway.NewClient(gateway.NewMockProvider())
	fulfillmentService := fulfillment.NewService(db, negotiationService, checkoutClient, frontendURL)
	fulfillmentHandlers := fulfillment.NewGinHandlers(fulfillmentService)

	reconciliationService := reconciliation.NewService(db, negotiationService, catalogService)
	reconciliationHandlers := reconciliation.NewGinHandlers(reconciliationService)

	// Seed demo accounts outside production, mirroring a fresh install
	if os.Getenv("ENV") != "production" {
		seedDemoUsers(authService)
	}

	// Create and start the reconciliation sweeper
	sweeper := reconciliation.NewSweeper(reconciliationService)
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()

	go sweeper.Start(sweeperCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, jwtSecret, authHandlers, catalogHandlers, negotiationHandlers,
		fulfillmentHandlers, reconciliationHandlers, notificationHandlers)

	port := getEnv("PORT", "8080")

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// seedDemoUsers registers the accounts the simulation and local development
// rely on. Creation errors are ignored because the rows survive restarts.
func seedDemoUsers(authService *auth.Service) {
	demo := []struct {
		name, email, password, role string
	}{
		{"Demo Buyer", "buyer@tradepost.local", "buyer-secret", "member"},
		{"Demo Seller", "seller@tradepost.local", "seller-secret", "member"},
		{"Demo Admin", "admin@tradepost.local", "admin-secret", "admin"},
	}
	for _, u := range demo {
		if _, err := authService.RegisterUser(u.name, u.email, u.password, u.role); err != nil {
			zlog.Debug().Str("email", u.email).Msg("demo user already present")
		}
	}
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Marketplace routes: Protected by JWT authentication
// - Admin routes: Protected by JWT authentication plus the admin role
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	catalogHandlers *catalog.GinHandlers,
	negotiationHandlers *negotiation.GinHandlers,
	fulfillmentHandlers *fulfillment.GinHandlers,
	reconciliationHandlers *reconciliation.GinHandlers,
	notificationHandlers *notification.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Marketplace routes
		market := v1.Group("")
		market.Use(middleware.JWTAuth(jwtSecret))
		{
			market.POST("/products", catalogHandlers.CreateProductHandler())
			market.GET("/products/:product_id", catalogHandlers.GetProductHandler())

			market.POST("/trade-requests", negotiationHandlers.CreateTradeRequestHandler())
			market.PUT("/trade-requests/:request_id/status", negotiationHandlers.UpdateStatusHandler())
			market.GET("/trade-requests/buying", negotiationHandlers.BuyerRequestsHandler())
			market.GET("/trade-requests/selling", negotiationHandlers.SellerRequestsHandler())

			market.POST("/orders", fulfillmentHandlers.InitiateOrderHandler())
			market.POST("/orders/:order_id/checkout-session", fulfillmentHandlers.CreateCheckoutSessionHandler())

			market.PUT("/payments/success", reconciliationHandlers.PaymentSuccessHandler())

			market.GET("/sold-items", reconciliationHandlers.ListSoldItemsHandler())

			market.GET("/notifications", notificationHandlers.ListNotificationsHandler())
			market.PUT("/notifications/:notification_id/read", notificationHandlers.MarkReadHandler())
		}

		// Admin moderation routes
		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(jwtSecret), middleware.AdminOnly())
		{
			admin.GET("/orders", fulfillmentHandlers.ListOrdersHandler())
			admin.GET("/orders/:order_id", fulfillmentHandlers.GetOrderHandler())
			admin.PUT("/orders/:order_id", fulfillmentHandlers.UpdateOrderHandler())
			admin.PUT("/orders/:order_id/cancel", fulfillmentHandlers.CancelOrderHandler())
			admin.POST("/orders/:order_id/refund", fulfillmentHandlers.ProcessRefundHandler())
			admin.PUT("/products/:product_id/unlist", catalogHandlers.UnlistProductHandler())
			admin.GET("/reports/summary", fulfillmentHandlers.ReportSummaryHandler())
		}
	}
}
