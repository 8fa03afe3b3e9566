package negotiation

import (
	"github.com/tradepost/tradepost-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateTradeRequest(request *types.TradeRequest) error {
	return d.db.Create(request).Error
}

func (d *Database) GetTradeRequest(requestID uint) (*types.TradeRequest, error) {
	var request types.TradeRequest
	if err := d.db.First(&request, requestID).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (d *Database) UpdateTradeRequest(request *types.TradeRequest) error {
	return d.db.Save(request).Error
}

// GetApprovedRequest finds the unique approved request for a (product, buyer)
// pair. Uniqueness is enforced by a partial index, so First is unambiguous.
func (d *Database) GetApprovedRequest(productID, buyerID uint) (*types.TradeRequest, error) {
	var request types.TradeRequest
	if err := d.db.Where("product_id = ? AND buyer_id = ? AND request_status = ?",
		productID, buyerID, types.TradeStatusApproved).
		First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (d *Database) GetBuyerRequests(buyerID uint) ([]types.TradeRequest, error) {
	var requests []types.TradeRequest
	if err := d.db.Where("buyer_id = ?", buyerID).
		Order("requested_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (d *Database) GetSellerRequests(sellerID uint) ([]types.TradeRequest, error) {
	var requests []types.TradeRequest
	if err := d.db.Where("seller_id = ?", sellerID).
		Order("requested_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (d *Database) GetProduct(productID uint) (*types.Product, error) {
	var product types.Product
	if err := d.db.First(&product, productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (d *Database) GetUser(userID uint) (*types.User, error) {
	var user types.User
	if err := d.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
