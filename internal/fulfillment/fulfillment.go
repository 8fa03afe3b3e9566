package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tradepost/tradepost-api/internal/auth"
	"github.com/tradepost/tradepost-api/internal/gateway"
	"github.com/tradepost/tradepost-api/internal/types"
	"github.com/tradepost/tradepost-api/pkg/response"
	"gorm.io/gorm"
)

const checkoutCurrency = "cad"

// PriceOracle resolves the approved trade amount used to price an order.
// Satisfied by the negotiation service.
type PriceOracle interface {
	GetApprovedAmount(productID, buyerID uint) (float64, error)
}

// CheckoutGateway creates hosted-checkout sessions. Satisfied by the gateway
// client.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, params gateway.SessionParams) (string, error)
}

// Service creates and moderates orders. The order's total amount is fixed at
// creation from the approved trade request and only explicit admin actions
// may change it afterwards.
type Service struct {
	db          *Database
	prices      PriceOracle
	gateway     CheckoutGateway
	frontendURL string
}

// NewService creates a new fulfillment service.
func NewService(gormDB *gorm.DB, prices PriceOracle, checkout CheckoutGateway, frontendURL string) *Service {
	return &Service{
		db:          NewDatabase(gormDB),
		prices:      prices,
		gateway:     checkout,
		frontendURL: frontendURL,
	}
}

// ShippingAddressInput is the address payload captured at checkout.
type ShippingAddressInput struct {
	BillingName string `json:"billing_name" binding:"required"`
	Country     string `json:"country" binding:"required"`
	Line1       string `json:"line1" binding:"required"`
	Line2       string `json:"line2"`
	City        string `json:"city" binding:"required"`
	State       string `json:"state" binding:"required"`
	PostalCode  string `json:"postal_code" binding:"required"`
}

// InitiateOrder starts checkout: it prices the order from the approved trade
// request and creates the pending payment and order records atomically.
// Returns the new order's ID.
func (s *Service) InitiateOrder(buyerID, productID uint, addr ShippingAddressInput) (uint, error) {
	logger := log.With().
		Uint("product_id", productID).
		Uint("buyer_id", buyerID).
		Str("service", "fulfillment").
		Logger()

	amount, err := s.prices.GetApprovedAmount(productID, buyerID)
	if err != nil {
		return 0, err
	}

	if _, err := s.db.GetProduct(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("product %d: %w", productID, types.ErrNotFound)
		}
		return 0, err
	}
	if _, err := s.db.GetUser(buyerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("buyer %d: %w", buyerID, types.ErrNotFound)
		}
		return 0, err
	}

	address := &types.ShippingAddress{
		BillingName: addr.BillingName,
		Country:     addr.Country,
		Line1:       addr.Line1,
		Line2:       addr.Line2,
		City:        addr.City,
		State:       addr.State,
		PostalCode:  addr.PostalCode,
	}

	payment := &types.Payment{
		PaymentRef:    "pay_" + uuid.New().String(),
		PaymentMethod: "Card",
		PaymentStatus: types.PaymentStatusPending,
		Amount:        amount,
		PaymentDate:   time.Now(),
	}

	order := &types.Order{
		BuyerID:             buyerID,
		ProductID:           productID,
		TotalAmount:         amount,
		OrderStatus:         types.OrderStatusPending,
		TransactionDatetime: time.Now(),
		Version:             1,
	}

	if err := s.db.CreateOrderWithPayment(address, payment, order); err != nil {
		return 0, err
	}

	logger.Info().
		Uint("order_id", order.OrderID).
		Uint("payment_id", payment.PaymentID).
		Float64("total_amount", amount).
		Msg("order initiated")

	return order.OrderID, nil
}

// CreateCheckoutSession builds a hosted-checkout request for an initiated
// order and returns the opaque session identifier.
func (s *Service) CreateCheckoutSession(ctx context.Context, buyerID, productID, orderID uint) (string, error) {
	logger := log.With().
		Uint("order_id", orderID).
		Uint("product_id", productID).
		Str("service", "fulfillment").
		Logger()

	amount, err := s.prices.GetApprovedAmount(productID, buyerID)
	if err != nil {
		return "", err
	}

	order, err := s.db.GetOrder(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("order %d: %w", orderID, types.ErrNotFound)
		}
		return "", err
	}
	if order.BuyerID != buyerID {
		return "", fmt.Errorf("order %d: %w", orderID, types.ErrNotFound)
	}

	product, err := s.db.GetProduct(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("product %d: %w", productID, types.ErrNotFound)
		}
		return "", err
	}

	successURL := fmt.Sprintf("%s/payment/success?amount=%v&productId=%d&sessionId={CHECKOUT_SESSION_ID}&orderId=%d",
		s.frontendURL, amount, productID, orderID)
	cancelURL := s.frontendURL + "/payment/fail"

	sessionID, err := s.gateway.CreateCheckoutSession(ctx, gateway.SessionParams{
		AmountMinorUnits: int64(math.Round(amount * 100)),
		Currency:         checkoutCurrency,
		SuccessURL:       successURL,
		CancelURL:        cancelURL,
		ProductName:      product.Title,
	})
	if err != nil {
		logger.Error().Err(err).Msg("checkout session creation failed")
		return "", err
	}

	logger.Info().Str("session_id", sessionID).Msg("checkout session created")

	return sessionID, nil
}

// OrderPatch carries admin moderation updates. Zero-valued fields are left
// untouched.
type OrderPatch struct {
	TotalAmount     float64               `json:"total_amount"`
	OrderStatus     string                `json:"order_status"`
	AdminComments   string                `json:"admin_comments"`
	ShippingAddress *ShippingAddressInput `json:"shipping_address"`
}

// GetOrder retrieves an order by ID.
func (s *Service) GetOrder(orderID uint) (*types.Order, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", orderID, types.ErrNotFound)
		}
		return nil, err
	}
	return order, nil
}

// ListOrders returns all orders, newest first. Admin moderation surface.
func (s *Service) ListOrders() ([]types.Order, error) {
	return s.db.GetAllOrders()
}

// UpdateOrder applies an admin patch. Fields update only when set; a nested
// shipping address patch updates the linked address record. The write is
// guarded by the order's version so it cannot silently clobber a concurrent
// reconciliation update.
func (s *Service) UpdateOrder(orderID uint, patch OrderPatch) (*types.Order, error) {
	logger := log.With().
		Uint("order_id", orderID).
		Str("service", "fulfillment").
		Logger()

	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	expectedVersion := order.Version

	if patch.TotalAmount != 0 {
		if patch.TotalAmount < 0 {
			return nil, fmt.Errorf("total amount cannot be negative: %w", types.ErrValidation)
		}
		order.TotalAmount = patch.TotalAmount
	}
	if patch.OrderStatus != "" {
		if !validOrderStatus(patch.OrderStatus) {
			return nil, fmt.Errorf("unknown order status %q: %w", patch.OrderStatus, types.ErrValidation)
		}
		order.OrderStatus = patch.OrderStatus
	}
	if patch.AdminComments != "" {
		order.AdminComments = patch.AdminComments
	}
	if patch.ShippingAddress != nil {
		if err := s.updateShippingAddress(order.ShippingAddressID, *patch.ShippingAddress); err != nil {
			return nil, err
		}
	}

	ok, err := s.db.UpdateOrderVersioned(order, expectedVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %d was modified concurrently: %w", orderID, types.ErrConflict)
	}
	order.Version = expectedVersion + 1

	logger.Info().Msg("order updated by admin")

	return order, nil
}

// CancelOrder sets the order to cancelled with the moderator's comment.
func (s *Service) CancelOrder(orderID uint, adminComments string) error {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return err
	}
	expectedVersion := order.Version

	order.OrderStatus = types.OrderStatusCancelled
	order.AdminComments = adminComments

	ok, err := s.db.UpdateOrderVersioned(order, expectedVersion)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("order %d was modified concurrently: %w", orderID, types.ErrConflict)
	}

	log.Info().
		Uint("order_id", orderID).
		Str("service", "fulfillment").
		Msg("order cancelled by admin")

	return nil
}

// ProcessRefund subtracts the refund from the order total. The refund must be
// positive and no larger than the current total.
func (s *Service) ProcessRefund(orderID uint, refundAmount float64) (*types.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	expectedVersion := order.Version

	if refundAmount <= 0 {
		return nil, fmt.Errorf("refund amount must be positive: %w", types.ErrValidation)
	}
	if refundAmount > order.TotalAmount {
		return nil, fmt.Errorf("refund amount %.2f exceeds order total %.2f: %w",
			refundAmount, order.TotalAmount, types.ErrValidation)
	}

	order.TotalAmount -= refundAmount

	ok, err := s.db.UpdateOrderVersioned(order, expectedVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %d was modified concurrently: %w", orderID, types.ErrConflict)
	}
	order.Version = expectedVersion + 1

	log.Info().
		Uint("order_id", orderID).
		Float64("refund_amount", refundAmount).
		Float64("new_total", order.TotalAmount).
		Str("service", "fulfillment").
		Msg("refund processed")

	return order, nil
}

func (s *Service) updateShippingAddress(addressID uint, input ShippingAddressInput) error {
	address, err := s.db.GetShippingAddress(addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("shipping address %d: %w", addressID, types.ErrNotFound)
		}
		return err
	}

	address.BillingName = input.BillingName
	address.Country = input.Country
	address.Line1 = input.Line1
	address.Line2 = input.Line2
	address.City = input.City
	address.State = input.State
	address.PostalCode = input.PostalCode

	return s.db.UpdateShippingAddress(address)
}

func validOrderStatus(s string) bool {
	switch s {
	case types.OrderStatusPending, types.OrderStatusShipped,
		types.OrderStatusDelivered, types.OrderStatusCancelled:
		return true
	}
	return false
}

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// InitiateOrderRequest is the payload to begin checkout.
type InitiateOrderRequest struct {
	ProductID       uint                 `json:"product_id" binding:"required"`
	ShippingAddress ShippingAddressInput `json:"shipping_address" binding:"required"`
}

// CheckoutSessionRequest identifies the product being paid for.
type CheckoutSessionRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
}

// CancelOrderRequest carries the moderator's comment.
type CancelOrderRequest struct {
	AdminComments string `json:"admin_comments"`
}

// RefundRequest carries the amount to refund.
type RefundRequest struct {
	RefundAmount float64 `json:"refund_amount" binding:"required"`
}

// InitiateOrderHandler handles POST requests to begin checkout.
// The buyer is the authenticated caller.
func (h *GinHandlers) InitiateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		buyerID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var req InitiateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		orderID, err := h.service.InitiateOrder(buyerID, req.ProductID, req.ShippingAddress)
		response.Handle(c, types.OrderCreatedResponse{OrderID: orderID}, err)
	}
}

// CreateCheckoutSessionHandler handles POST requests for hosted-checkout
// sessions. URL parameter: order_id
func (h *GinHandlers) CreateCheckoutSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		buyerID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		orderID, err := parseUintParam(c, "order_id")
		if err != nil {
			response.BadRequest(c, "Invalid order ID")
			return
		}

		var req CheckoutSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		sessionID, err := h.service.CreateCheckoutSession(c.Request.Context(), buyerID, req.ProductID, orderID)
		response.Handle(c, types.CheckoutSessionResponse{SessionID: sessionID}, err)
	}
}

// ListOrdersHandler handles GET requests for all orders. Admin only.
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.ListOrders()
		response.Handle(c, orders, err)
	}
}

// GetOrderHandler handles GET requests for a single order. Admin only.
// URL parameter: order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseUintParam(c, "order_id")
		if err != nil {
			response.BadRequest(c, "Invalid order ID")
			return
		}

		order, err := h.service.GetOrder(orderID)
		response.Handle(c, order, err)
	}
}

// UpdateOrderHandler handles PUT requests to patch an order. Admin only.
// URL parameter: order_id
func (h *GinHandlers) UpdateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseUintParam(c, "order_id")
		if err != nil {
			response.BadRequest(c, "Invalid order ID")
			return
		}

		var patch OrderPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.UpdateOrder(orderID, patch)
		response.Handle(c, order, err)
	}
}

// CancelOrderHandler handles PUT requests to cancel an order. Admin only.
// URL parameter: order_id
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseUintParam(c, "order_id")
		if err != nil {
			response.BadRequest(c, "Invalid order ID")
			return
		}

		var req CancelOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.CancelOrder(orderID, req.AdminComments); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"message": "order cancelled successfully"})
	}
}

// ProcessRefundHandler handles POST requests to refund part of an order.
// Admin only. URL parameter: order_id
func (h *GinHandlers) ProcessRefundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseUintParam(c, "order_id")
		if err != nil {
			response.BadRequest(c, "Invalid order ID")
			return
		}

		var req RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.ProcessRefund(orderID, req.RefundAmount)
		response.Handle(c, order, err)
	}
}

// ReportSummaryHandler handles GET requests for the 30-day reporting
// summary. Admin only.
func (h *GinHandlers) ReportSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.service.ReportSummary()
		response.Handle(c, summary, err)
	}
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	return uint(v), err
}
