package reconciliation

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tradepost/tradepost-api/internal/auth"
	"github.com/tradepost/tradepost-api/internal/types"
	"github.com/tradepost/tradepost-api/pkg/response"
	"gorm.io/gorm"
)

// TradeCompleter flips the approved trade request for a (product, buyer)
// pair to completed. A miss is reported, not failed, because the request may
// already have been finalized. Satisfied by the negotiation service.
type TradeCompleter interface {
	CompleteByProduct(productID, buyerID uint) (string, error)
}

// ProductLedger marks products sold. Satisfied by the catalog service.
type ProductLedger interface {
	MarkSold(productID uint) error
}

// Service runs the terminal steps of the workflow on payment-gateway
// success. Every step is individually idempotent, so a retried webhook
// replays the chain without duplicating effects.
type Service struct {
	db     *Database
	trades TradeCompleter
	ledger ProductLedger
}

// NewService creates a new reconciliation service.
func NewService(gormDB *gorm.DB, trades TradeCompleter, ledger ProductLedger) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		trades: trades,
		ledger: ledger,
	}
}

// Finalize settles an order after the gateway reports success: the order is
// delivered, its payment completed, the product marked sold, the trade
// request completed, and the sale recorded.
func (s *Service) Finalize(orderID uint) error {
	logger := log.With().
		Uint("order_id", orderID).
		Str("service", "reconciliation").
		Logger()

	logger.Info().Msg("finalizing order after payment success")

	order, err := s.db.GetOrder(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("order %d: %w", orderID, types.ErrNotFound)
		}
		return err
	}

	payment, err := s.db.GetPayment(order.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("payment %d for order %d: %w", order.PaymentID, orderID, types.ErrNotFound)
		}
		return err
	}

	if order.OrderStatus != types.OrderStatusDelivered || payment.PaymentStatus != types.PaymentStatusCompleted {
		order.OrderStatus = types.OrderStatusDelivered
		order.Version++
		if payment.PaymentStatus != types.PaymentStatusCompleted {
			payment.PaymentStatus = types.PaymentStatusCompleted
			payment.PaymentDate = time.Now()
		}
		if err := s.db.SettleOrderPayment(order, payment); err != nil {
			return err
		}
		logger.Info().
			Uint("payment_id", payment.PaymentID).
			Msg("order delivered and payment completed")
	} else {
		logger.Info().Msg("order already settled, replaying remaining steps")
	}

	if err := s.ledger.MarkSold(order.ProductID); err != nil {
		return err
	}

	result, err := s.trades.CompleteByProduct(order.ProductID, order.BuyerID)
	if err != nil {
		return err
	}
	logger.Debug().Str("result", result).Msg("trade request completion step finished")

	if err := s.RecordSale(order.ProductID); err != nil {
		return err
	}

	logger.Info().Msg("order finalized")

	return nil
}

// RecordSale writes the sold-item audit record for a product exactly once.
// Gateway webhooks are retried, so an existing record is a successful no-op.
func (s *Service) RecordSale(productID uint) error {
	logger := log.With().
		Uint("product_id", productID).
		Str("service", "reconciliation").
		Logger()

	product, err := s.db.GetProduct(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("product %d: %w", productID, types.ErrNotFound)
		}
		return err
	}

	exists, err := s.db.SoldItemExists(productID)
	if err != nil {
		return err
	}
	if exists {
		logger.Info().Msg("sold item already recorded, skipping")
		return nil
	}

	item := &types.SoldItem{
		SellerID:  product.SellerID,
		ProductID: productID,
		SoldDate:  time.Now(),
	}
	if err := s.db.CreateSoldItem(item); err != nil {
		return err
	}

	logger.Info().Uint("sold_item_id", item.SoldItemID).Msg("sale recorded")

	return nil
}

// ListSoldItems returns the seller's sale history, newest first.
func (s *Service) ListSoldItems(sellerID uint) ([]types.SoldItem, error) {
	return s.db.GetSellerSoldItems(sellerID)
}

// GetDB exposes the database layer to the background sweeper.
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for payment reconciliation endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for reconciliation endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PaymentSuccessRequest identifies the order the gateway settled.
type PaymentSuccessRequest struct {
	OrderID uint `json:"order_id" binding:"required"`
}

// PaymentSuccessHandler handles PUT requests from the gateway's success
// redirect. Safe to call more than once for the same order.
func (h *GinHandlers) PaymentSuccessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentSuccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.Finalize(req.OrderID); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"message": "payment processed successfully"})
	}
}

// ListSoldItemsHandler handles GET requests for the caller's sale history
func (h *GinHandlers) ListSoldItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		items, err := h.service.ListSoldItems(sellerID)
		response.Handle(c, items, err)
	}
}
