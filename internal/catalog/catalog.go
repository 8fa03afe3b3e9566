package catalog

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tradepost/tradepost-api/internal/types"
	"gorm.io/gorm"
)

// Service tracks product availability. It owns the unlisted and sold flags;
// the sold flag is flipped only by the payment reconciliation path.
type Service struct {
	db *Database
}

// NewService creates a new catalog service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateProduct lists a new product for the given seller.
func (s *Service) CreateProduct(sellerID uint, title string, price float64) (*types.Product, error) {
	if price <= 0 {
		return nil, fmt.Errorf("product price must be positive: %w", types.ErrValidation)
	}
	if _, err := s.db.GetUser(sellerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("seller %d: %w", sellerID, types.ErrNotFound)
		}
		return nil, err
	}

	product := &types.Product{
		SellerID: sellerID,
		Title:    title,
		Price:    price,
	}
	if err := s.db.CreateProduct(product); err != nil {
		return nil, err
	}

	log.Info().
		Uint("product_id", product.ProductID).
		Uint("seller_id", sellerID).
		Float64("price", price).
		Str("service", "catalog").
		Msg("product listed")

	return product, nil
}

// GetProduct retrieves a product by ID.
func (s *Service) GetProduct(productID uint) (*types.Product, error) {
	product, err := s.db.GetProduct(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, types.ErrNotFound)
		}
		return nil, err
	}
	return product, nil
}

// MarkSold flips the product's sold flag. Calling it on an already-sold
// product is a no-op so the payment success path can be retried.
func (s *Service) MarkSold(productID uint) error {
	product, err := s.GetProduct(productID)
	if err != nil {
		return err
	}
	if product.Sold {
		return nil
	}

	product.Sold = true
	if err := s.db.UpdateProduct(product); err != nil {
		return err
	}

	log.Info().
		Uint("product_id", productID).
		Str("service", "catalog").
		Msg("product marked as sold")

	return nil
}

// SetUnlisted hides or re-lists a product. Admin moderation only.
func (s *Service) SetUnlisted(productID uint, unlisted bool) error {
	product, err := s.GetProduct(productID)
	if err != nil {
		return err
	}

	product.Unlisted = unlisted
	if err := s.db.UpdateProduct(product); err != nil {
		return err
	}

	log.Info().
		Uint("product_id", productID).
		Bool("unlisted", unlisted).
		Str("service", "catalog").
		Msg("product listing visibility updated")

	return nil
}
