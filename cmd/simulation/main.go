package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tradepost/tradepost-api/internal/auth"
	"github.com/tradepost/tradepost-api/internal/catalog"
	"github.com/tradepost/tradepost-api/internal/database"
	"github.com/tradepost/tradepost-api/internal/fulfillment"
	"github.com/tradepost/tradepost-api/internal/gateway"
	"github.com/tradepost/tradepost-api/internal/negotiation"
	"github.com/tradepost/tradepost-api/internal/notification"
	"github.com/tradepost/tradepost-api/internal/reconciliation"
	"github.com/tradepost/tradepost-api/internal/types"
	"github.com/tradepost/tradepost-api/pkg/middleware"
)

const (
	minTrades     = 10
	maxTrades     = 60
	numWorkers    = 5
	serverAddress = "http://localhost:8080"

	buyerEmail     = "buyer@tradepost.local"
	buyerPassword  = "buyer-secret"
	sellerEmail    = "seller@tradepost.local"
	sellerPassword = "seller-secret"
)

var productTitles = []string{
	"Mountain Bike", "Physics Textbook", "Desk Lamp", "Acoustic Guitar",
	"Road Skates", "Mini Fridge", "Office Chair", "Film Camera",
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the marketplace API.
// It holds one token per role because product listing, request approval
// and checkout are performed by different identities.
type simulationClient struct {
	baseURL     string
	buyerToken  string
	sellerToken string
	client      *http.Client
	mu          sync.Mutex
	stats       map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates both demo accounts and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"product":  {name: "Create Product"},
			"request":  {name: "Trade Request"},
			"approve":  {name: "Approve Request"},
			"order":    {name: "Create Order"},
			"checkout": {name: "Checkout Session"},
			"success":  {name: "Payment Success"},
		},
	}

	buyerToken, err := sc.authenticate(buyerEmail, buyerPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate buyer: %w", err)
	}
	sc.buyerToken = buyerToken

	sellerToken, err := sc.authenticate(sellerEmail, sellerPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate seller: %w", err)
	}
	sc.sellerToken = sellerToken

	return sc, nil
}

// record appends a duration measurement under the stats lock because the
// workers share one client.
func (sc *simulationClient) record(route string, start time.Time) {
	sc.mu.Lock()
	sc.stats[route].addDuration(time.Since(start))
	sc.mu.Unlock()
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate(email, password string) (string, error) {
	start := time.Now()
	defer sc.record("auth", start)

	credentials := map[string]string{
		"email":    email,
		"password": password,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// doJSON sends an authorized JSON request and decodes the envelope's data
// field into out when out is non-nil.
func (sc *simulationClient) doJSON(method, path, token string, payload, out interface{}) error {
	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(body)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w, body: %s", err, string(respBody))
	}

	return nil
}

// createProduct lists a new product as the demo seller
func (sc *simulationClient) createProduct(title string, price float64) (*types.Product, error) {
	start := time.Now()
	defer sc.record("product", start)

	var product types.Product
	err := sc.doJSON("POST", "/api/v1/products", sc.sellerToken,
		map[string]interface{}{"title": title, "price": price}, &product)
	if err != nil {
		return nil, err
	}
	if product.ProductID == 0 {
		return nil, fmt.Errorf("no product ID in response")
	}
	return &product, nil
}

// createTradeRequest opens a trade request as the demo buyer
func (sc *simulationClient) createTradeRequest(productID, sellerID uint, price float64) (*types.TradeRequest, error) {
	start := time.Now()
	defer sc.record("request", start)

	var request types.TradeRequest
	err := sc.doJSON("POST", "/api/v1/trade-requests", sc.buyerToken,
		map[string]interface{}{
			"product_id":      productID,
			"seller_id":       sellerID,
			"requested_price": price,
		}, &request)
	if err != nil {
		return nil, err
	}
	if request.RequestID == 0 {
		return nil, fmt.Errorf("no request ID in response")
	}
	return &request, nil
}

// approveTradeRequest transitions a trade request to approved as the seller
func (sc *simulationClient) approveTradeRequest(requestID uint) error {
	start := time.Now()
	defer sc.record("approve", start)

	path := fmt.Sprintf("/api/v1/trade-requests/%d/status", requestID)
	return sc.doJSON("PUT", path, sc.sellerToken, map[string]string{"status": "approved"}, nil)
}

// createOrder begins checkout for an approved trade as the buyer
// Returns the order ID on success
func (sc *simulationClient) createOrder(productID uint) (uint, error) {
	start := time.Now()
	defer sc.record("order", start)

	var created struct {
		OrderID uint `json:"order_id"`
	}
	err := sc.doJSON("POST", "/api/v1/orders", sc.buyerToken, map[string]interface{}{
		"product_id": productID,
		"shipping_address": map[string]string{
			"billing_name": "Demo Buyer",
			"country":      "CA",
			"line1":        "6299 South St",
			"city":         "Halifax",
			"state":        "NS",
			"postal_code":  "B3H 4R2",
		},
	}, &created)
	if err != nil {
		return 0, err
	}
	if created.OrderID == 0 {
		return 0, fmt.Errorf("no order ID in response")
	}
	return created.OrderID, nil
}

// createCheckoutSession requests a hosted-checkout session for an order
func (sc *simulationClient) createCheckoutSession(orderID, productID uint) (string, error) {
	start := time.Now()
	defer sc.record("checkout", start)

	var session struct {
		SessionID string `json:"session_id"`
	}
	path := fmt.Sprintf("/api/v1/orders/%d/checkout-session", orderID)
	err := sc.doJSON("POST", path, sc.buyerToken,
		map[string]interface{}{"product_id": productID}, &session)
	if err != nil {
		return "", err
	}
	if session.SessionID == "" {
		return "", fmt.Errorf("no session ID in response")
	}
	return session.SessionID, nil
}

// paymentSuccess reports gateway confirmation, triggering reconciliation
func (sc *simulationClient) paymentSuccess(orderID uint) error {
	start := time.Now()
	defer sc.record("success", start)

	return sc.doJSON("PUT", "/api/v1/payments/success", sc.buyerToken,
		map[string]interface{}{"order_id": orderID}, nil)
}

// soldItems retrieves the seller's sale records
func (sc *simulationClient) soldItems() ([]types.SoldItem, error) {
	var items []types.SoldItem
	if err := sc.doJSON("GET", "/api/v1/sold-items", sc.sellerToken, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// tradeResult captures the outcome of one full listing-to-settlement run
type tradeResult struct {
	title  string
	amount float64
	failed string // stage that failed, empty on success
}

// main runs the marketplace simulation
// It starts a local API server and drives concurrent trade lifecycles
// from listing through negotiation, checkout and payment reconciliation
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Generate random number of trades to run
	targetTrades := rand.Intn(maxTrades-minTrades) + minTrades
	log.Info().Int("target_trades", targetTrades).Msg("Starting simulation")

	resultsChan := make(chan tradeResult, targetTrades)
	var wg sync.WaitGroup

	startTime := time.Now()

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runTrades(workerID, targetTrades/numWorkers, simClient, resultsChan)
		}(i)
	}

	// Wait for all trades to finish
	wg.Wait()
	close(resultsChan)

	// Collect statistics
	stats := struct {
		TotalTrades  int
		Settled      int
		TotalValue   float64
		FailedStages map[string]int
		Titles       map[string]int
	}{
		FailedStages: make(map[string]int),
		Titles:       make(map[string]int),
	}

	for result := range resultsChan {
		stats.TotalTrades++
		if result.failed != "" {
			stats.FailedStages[result.failed]++
			continue
		}
		stats.Settled++
		stats.TotalValue += result.amount
		stats.Titles[result.title]++
	}

	// The sale records are the reconciliation output, so count them as the
	// final cross-check
	soldItems, err := simClient.soldItems()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sold items")
	}

	// Print summary
	duration := time.Since(startTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🛒 MARKETPLACE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Trade Statistics
------------------
Total Trades:   %d
Settled:        %d
Sale Records:   %d
Total Value:    $%.2f
Duration:       %v

📈 Product Distribution
--------------------
`, stats.TotalTrades, stats.Settled, len(soldItems),
		stats.TotalValue, duration.Round(time.Millisecond))

	// Print product distribution with simple ASCII bar chart
	maxTitleCount := 0
	for _, count := range stats.Titles {
		if count > maxTitleCount {
			maxTitleCount = count
		}
	}

	for title, count := range stats.Titles {
		barLength := int(float64(count) / float64(maxTitleCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-16s: %s (%d)\n", title, bar, count)
	}

	if len(stats.FailedStages) > 0 {
		fmt.Println("\n📉 Failures By Stage")
		fmt.Println("------------------")
		for stage, count := range stats.FailedStages {
			fmt.Printf("%-16s: %d\n", stage, count)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	// Success rate calculation
	successRate := float64(stats.Settled) / float64(stats.TotalTrades) * 100
	log.Info().
		Float64("success_rate", successRate).
		Int("total_trades", stats.TotalTrades).
		Int("settled_trades", stats.Settled).
		Float64("total_value", stats.TotalValue).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// runTrades drives full trade lifecycles against the API
// Runs as a worker goroutine, sending outcomes to resultsChan
func runTrades(workerID, numTrades int, simClient *simulationClient, resultsChan chan<- tradeResult) {
	for i := 0; i < numTrades; i++ {
		title := productTitles[rand.Intn(len(productTitles))]
		listPrice := float64(rand.Intn(900) + 100)
		offerPrice := listPrice - float64(rand.Intn(50))

		product, err := simClient.createProduct(title, listPrice)
		if err != nil {
			log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to create product")
			resultsChan <- tradeResult{title: title, failed: "product"}
			continue
		}

		request, err := simClient.createTradeRequest(product.ProductID, product.SellerID, offerPrice)
		if err != nil {
			log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to create trade request")
			resultsChan <- tradeResult{title: title, failed: "request"}
			continue
		}

		if err := simClient.approveTradeRequest(request.RequestID); err != nil {
			log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to approve trade request")
			resultsChan <- tradeResult{title: title, failed: "approve"}
			continue
		}

		orderID, err := simClient.createOrder(product.ProductID)
		if err != nil {
			log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to create order")
			resultsChan <- tradeResult{title: title, failed: "order"}
			continue
		}

		sessionID, err := simClient.createCheckoutSession(orderID, product.ProductID)
		if err != nil {
			log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to create checkout session")
			resultsChan <- tradeResult{title: title, failed: "checkout"}
			continue
		}

		if err := simClient.paymentSuccess(orderID); err != nil {
			log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to confirm payment")
			resultsChan <- tradeResult{title: title, failed: "success"}
			continue
		}

		resultsChan <- tradeResult{title: title, amount: offerPrice}
		log.Info().
			Int("worker_id", workerID).
			Uint("product_id", product.ProductID).
			Uint("order_id", orderID).
			Str("session_id", sessionID).
			Str("title", title).
			Float64("amount", offerPrice).
			Msg("Trade settled")

		// Random sleep between trades
		time.Sleep(time.Duration(rand.Intn(300)) * time.Millisecond)
	}
}

// startServer initializes and starts the marketplace API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase("tradepost_simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	jwtSecret := "tradepost-simulation-secret"

	// Initialize services
	authService := auth.NewService(db, jwtSecret)
	notificationService := notification.NewService(db)
	catalogService := catalog.NewService(db)
	negotiationService := negotiation.NewService(db, notificationService)
	checkoutClient := gateway.NewClient(gateway.NewMockProvider())
	fulfillmentService := fulfillment.NewService(db, negotiationService, checkoutClient, "http://localhost:3000")
	reconciliationService := reconciliation.NewService(db, negotiationService, catalogService)

	// Register demo accounts
	if _, err := authService.RegisterUser("Demo Buyer", buyerEmail, buyerPassword, types.RoleMember); err != nil {
		log.Debug().Msg("buyer account already present")
	}
	if _, err := authService.RegisterUser("Demo Seller", sellerEmail, sellerPassword, types.RoleMember); err != nil {
		log.Debug().Msg("seller account already present")
	}

	// Initialize router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	authHandlers := auth.NewGinHandlers(authService)
	catalogHandlers := catalog.NewGinHandlers(catalogService)
	negotiationHandlers := negotiation.NewGinHandlers(negotiationService)
	fulfillmentHandlers := fulfillment.NewGinHandlers(fulfillmentService)
	reconciliationHandlers := reconciliation.NewGinHandlers(reconciliationService)
	notificationHandlers := notification.NewGinHandlers(notificationService)

	// Setup routes
	setupRoutes(router, jwtSecret, authHandlers, catalogHandlers, negotiationHandlers,
		fulfillmentHandlers, reconciliationHandlers, notificationHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
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

		// Marketplace routes. Rate limiting is left off so the workers can
		// drive load without tripping it.
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
	}
}
