package reconciliation

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

func (d *Database) GetOrder(orderID uint) (*types.Order, error) {
	var order types.Order
	if err := d.db.First(&order, orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetPayment(paymentID uint) (*types.Payment, error) {
	var payment types.Payment
	if err := d.db.First(&payment, paymentID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (d *Database) GetProduct(productID uint) (*types.Product, error) {
	var product types.Product
	if err := d.db.First(&product, productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// SettleOrderPayment marks the order delivered and its payment completed in
// one transaction. Orders and payments already in their terminal state are
// left untouched so the write is safe to repeat.
func (d *Database) SettleOrderPayment(order *types.Order, payment *types.Payment) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Save(order).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Save(payment).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func (d *Database) SoldItemExists(productID uint) (bool, error) {
	var count int64
	if err := d.db.Model(&types.SoldItem{}).
		Where("product_id = ?", productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Database) CreateSoldItem(item *types.SoldItem) error {
	return d.db.Create(item).Error
}

func (d *Database) GetSellerSoldItems(sellerID uint) ([]types.SoldItem, error) {
	var items []types.SoldItem
	if err := d.db.Where("seller_id = ?", sellerID).
		Order("sold_date DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetIncompleteReconciliations finds delivered orders with a completed
// payment whose sale was never recorded. These are finalize chains that were
// cut short after the settle transaction and need to be re-driven. The
// completed-payment condition keeps orders an admin moved to DELIVERED by
// hand out of the backlog: only the gateway callback completes a payment, so
// without it the sweeper would settle orders nobody paid for.
func (d *Database) GetIncompleteReconciliations() ([]types.Order, error) {
	soldProducts := d.db.Model(&types.SoldItem{}).Select("product_id")

	var orders []types.Order
	if err := d.db.Model(&types.Order{}).
		Select("orders.*").
		Joins("JOIN payments ON payments.payment_id = orders.payment_id").
		Where("orders.order_status = ? AND payments.payment_status = ? AND orders.product_id NOT IN (?)",
			types.OrderStatusDelivered, types.PaymentStatusCompleted, soldProducts).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
