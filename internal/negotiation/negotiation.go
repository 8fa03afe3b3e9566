package negotiation

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tradepost/tradepost-api/internal/auth"
	"github.com/tradepost/tradepost-api/internal/notification"
	"github.com/tradepost/tradepost-api/internal/types"
	"github.com/tradepost/tradepost-api/pkg/response"
	"gorm.io/gorm"
)

// Service owns the trade request state machine. Transitions are validated
// against the closed table in internal/types; every accepted transition
// notifies the buyer, and the seller on completed/canceled.
type Service struct {
	db         *Database
	dispatcher notification.Dispatcher
}

// NewService creates a new negotiation service with the given database
// connection and notification dispatcher.
func NewService(gormDB *gorm.DB, dispatcher notification.Dispatcher) *Service {
	return &Service{
		db:         NewDatabase(gormDB),
		dispatcher: dispatcher,
	}
}

// CreateTradeRequest opens a pending trade request from the buyer against a
// listed product.
func (s *Service) CreateTradeRequest(buyerID, productID, sellerID uint, requestedPrice float64) (*types.TradeRequest, error) {
	logger := log.With().
		Uint("product_id", productID).
		Uint("buyer_id", buyerID).
		Str("service", "negotiation").
		Logger()

	if requestedPrice <= 0 {
		return nil, fmt.Errorf("requested price must be positive: %w", types.ErrValidation)
	}

	product, err := s.db.GetProduct(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, types.ErrNotFound)
		}
		return nil, err
	}
	if product.Sold {
		return nil, fmt.Errorf("product %d is already sold: %w", productID, types.ErrInvalidTransition)
	}

	if _, err := s.db.GetUser(sellerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("seller %d: %w", sellerID, types.ErrNotFound)
		}
		return nil, err
	}
	if _, err := s.db.GetUser(buyerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("buyer %d: %w", buyerID, types.ErrNotFound)
		}
		return nil, err
	}

	request := &types.TradeRequest{
		ProductID:      productID,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		RequestedPrice: requestedPrice,
		RequestStatus:  types.TradeStatusPending,
		RequestedAt:    time.Now(),
	}

	if err := s.db.CreateTradeRequest(request); err != nil {
		return nil, err
	}

	logger.Info().
		Uint("request_id", request.RequestID).
		Float64("requested_price", requestedPrice).
		Msg("trade request created")

	return request, nil
}

// UpdateStatus moves a trade request to a new status. Illegal transitions
// fail with an invalid-transition error rather than persisting.
func (s *Service) UpdateStatus(requestID uint, newStatus string) (*types.TradeRequest, error) {
	logger := log.With().
		Uint("request_id", requestID).
		Str("new_status", newStatus).
		Str("service", "negotiation").
		Logger()

	if !types.ValidTradeStatus(newStatus) {
		return nil, fmt.Errorf("unknown trade request status %q: %w", newStatus, types.ErrValidation)
	}

	request, err := s.db.GetTradeRequest(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("trade request %d: %w", requestID, types.ErrNotFound)
		}
		return nil, err
	}

	if !types.CanTransition(request.RequestStatus, newStatus) {
		return nil, fmt.Errorf("cannot move trade request %d from %s to %s: %w",
			requestID, request.RequestStatus, newStatus, types.ErrInvalidTransition)
	}

	if newStatus == types.TradeStatusApproved {
		product, err := s.db.GetProduct(request.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("product %d: %w", request.ProductID, types.ErrNotFound)
			}
			return nil, err
		}
		if product.Sold {
			return nil, fmt.Errorf("product %d is already sold: %w", request.ProductID, types.ErrInvalidTransition)
		}
	}

	request.RequestStatus = newStatus
	if err := s.db.UpdateTradeRequest(request); err != nil {
		// The partial unique index allows one approved request per
		// (product, buyer) pair
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("an approved trade request already exists for product %d and buyer %d: %w",
				request.ProductID, request.BuyerID, types.ErrConflict)
		}
		return nil, err
	}

	logger.Info().Msg("trade request status updated")

	s.notifyParties(request, newStatus)

	return request, nil
}

// GetApprovedAmount is the price oracle for checkout: it resolves the unique
// approved request for the (product, buyer) pair.
func (s *Service) GetApprovedAmount(productID, buyerID uint) (float64, error) {
	request, err := s.db.GetApprovedRequest(productID, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("approved trade request for product %d and buyer %d: %w",
				productID, buyerID, types.ErrNotFound)
		}
		return 0, err
	}
	return request.RequestedPrice, nil
}

// CompleteByProduct flips the approved request for (product, buyer) to
// completed. Invoked from the payment success callback, where the request may
// already have been finalized, so a miss is reported rather than failed.
func (s *Service) CompleteByProduct(productID, buyerID uint) (string, error) {
	logger := log.With().
		Uint("product_id", productID).
		Uint("buyer_id", buyerID).
		Str("service", "negotiation").
		Logger()

	request, err := s.db.GetApprovedRequest(productID, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn().Msg("no approved trade request to complete")
			return fmt.Sprintf("no approved trade request for product %d and buyer %d", productID, buyerID), nil
		}
		return "", err
	}

	request.RequestStatus = types.TradeStatusCompleted
	if err := s.db.UpdateTradeRequest(request); err != nil {
		return "", err
	}

	logger.Info().Uint("request_id", request.RequestID).Msg("trade request completed")

	s.notifyParties(request, types.TradeStatusCompleted)

	return "trade request completed", nil
}

// ListBuyerRequests returns the requests the user has made as a buyer.
func (s *Service) ListBuyerRequests(buyerID uint) ([]types.TradeRequest, error) {
	return s.db.GetBuyerRequests(buyerID)
}

// ListSellerRequests returns the requests against the user's listings.
func (s *Service) ListSellerRequests(sellerID uint) ([]types.TradeRequest, error) {
	return s.db.GetSellerRequests(sellerID)
}

// notifyParties dispatches status notifications. Delivery is best-effort:
// failures are logged and swallowed so the transition itself never depends on
// the side channel.
func (s *Service) notifyParties(request *types.TradeRequest, status string) {
	logger := log.With().
		Uint("request_id", request.RequestID).
		Str("status", status).
		Str("service", "negotiation").
		Logger()

	productTitle := ""
	if product, err := s.db.GetProduct(request.ProductID); err == nil {
		productTitle = product.Title
	}

	if title := buyerTitle(status); title != "" {
		if err := s.dispatcher.Send(request.BuyerID, title, buyerMessage(status, productTitle)); err != nil {
			logger.Error().Err(err).Uint("user_id", request.BuyerID).Msg("failed to notify buyer")
		}
	}

	if status == types.TradeStatusCompleted || status == types.TradeStatusCanceled {
		if err := s.dispatcher.Send(request.SellerID, sellerTitle(status), sellerMessage(status, productTitle)); err != nil {
			logger.Error().Err(err).Uint("user_id", request.SellerID).Msg("failed to notify seller")
		}
	}
}

// GinHandlers contains HTTP handlers for trade request endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for trade request endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateTradeRequestRequest is the payload for opening a trade request.
type CreateTradeRequestRequest struct {
	ProductID      uint    `json:"product_id" binding:"required"`
	SellerID       uint    `json:"seller_id" binding:"required"`
	RequestedPrice float64 `json:"requested_price" binding:"required"`
}

// UpdateStatusRequest is the payload for a status transition.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateTradeRequestHandler handles POST requests to open trade requests.
// The buyer is the authenticated caller.
func (h *GinHandlers) CreateTradeRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		buyerID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var req CreateTradeRequestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		request, err := h.service.CreateTradeRequest(buyerID, req.ProductID, req.SellerID, req.RequestedPrice)
		response.Handle(c, request, err)
	}
}

// UpdateStatusHandler handles PUT requests to transition a trade request
// URL parameter: request_id
func (h *GinHandlers) UpdateStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, err := parseUintParam(c, "request_id")
		if err != nil {
			response.BadRequest(c, "Invalid request ID")
			return
		}

		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		request, err := h.service.UpdateStatus(requestID, req.Status)
		response.Handle(c, request, err)
	}
}

// BuyerRequestsHandler handles GET requests for the caller's buy requests
func (h *GinHandlers) BuyerRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		buyerID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		requests, err := h.service.ListBuyerRequests(buyerID)
		response.Handle(c, requests, err)
	}
}

// SellerRequestsHandler handles GET requests for requests on the caller's listings
func (h *GinHandlers) SellerRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		requests, err := h.service.ListSellerRequests(sellerID)
		response.Handle(c, requests, err)
	}
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	return uint(v), err
}
