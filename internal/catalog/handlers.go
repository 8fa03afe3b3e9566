package catalog

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tradepost/tradepost-api/internal/auth"
	"github.com/tradepost/tradepost-api/pkg/response"
)

// GinHandlers contains HTTP handlers for product endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateProductRequest is the payload for listing a product.
type CreateProductRequest struct {
	Title string  `json:"title" binding:"required"`
	Price float64 `json:"price" binding:"required"`
}

// UnlistRequest toggles a product's listing visibility.
type UnlistRequest struct {
	Unlisted *bool `json:"unlisted" binding:"required"`
}

// CreateProductHandler handles POST requests to list a product.
// The seller is the authenticated caller.
func (h *GinHandlers) CreateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var req CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		product, err := h.service.CreateProduct(sellerID, req.Title, req.Price)
		response.Handle(c, product, err)
	}
}

// GetProductHandler handles GET requests for a single product
// URL parameter: product_id
func (h *GinHandlers) GetProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, err := parseUintParam(c, "product_id")
		if err != nil {
			response.BadRequest(c, "Invalid product ID")
			return
		}

		product, err := h.service.GetProduct(productID)
		response.Handle(c, product, err)
	}
}

// UnlistProductHandler handles PUT requests to hide or re-list a product.
// Admin only. URL parameter: product_id
func (h *GinHandlers) UnlistProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, err := parseUintParam(c, "product_id")
		if err != nil {
			response.BadRequest(c, "Invalid product ID")
			return
		}

		var req UnlistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.SetUnlisted(productID, *req.Unlisted); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"message": "product listing updated"})
	}
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	return uint(v), err
}
