package fulfillment

import (
	"time"

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

func (d *Database) GetAllOrders() ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Order("transaction_datetime DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
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

func (d *Database) GetShippingAddress(addressID uint) (*types.ShippingAddress, error) {
	var address types.ShippingAddress
	if err := d.db.First(&address, addressID).Error; err != nil {
		return nil, err
	}
	return &address, nil
}

func (d *Database) UpdateShippingAddress(address *types.ShippingAddress) error {
	return d.db.Save(address).Error
}

// CreateOrderWithPayment persists the shipping address, payment, and order in
// a single transaction so a partial failure cannot leave a payment without
// its order.
func (d *Database) CreateOrderWithPayment(address *types.ShippingAddress, payment *types.Payment, order *types.Order) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(address).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Create(payment).Error; err != nil {
		tx.Rollback()
		return err
	}

	order.ShippingAddressID = address.AddressID
	order.PaymentID = payment.PaymentID
	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// UpdateOrderVersioned writes the order only if nobody else has bumped its
// version since it was read. Returns gorm.ErrRecordNotFound mapping via zero
// rows when the version check fails.
func (d *Database) UpdateOrderVersioned(order *types.Order, expectedVersion int) (bool, error) {
	result := d.db.Model(&types.Order{}).
		Where("order_id = ? AND version = ?", order.OrderID, expectedVersion).
		Updates(map[string]interface{}{
			"total_amount":        order.TotalAmount,
			"order_status":        order.OrderStatus,
			"admin_comments":      order.AdminComments,
			"shipping_address_id": order.ShippingAddressID,
			"version":             expectedVersion + 1,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Reporting aggregates over the order table. SQL-level COALESCE keeps empty
// windows at zero instead of NULL.

func (d *Database) TotalSalesBetween(start, end time.Time) (float64, error) {
	var total float64
	err := d.db.Model(&types.Order{}).
		Where("transaction_datetime >= ? AND transaction_datetime < ?", start, end).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&total).Error
	return total, err
}

func (d *Database) CountOrdersBetween(start, end time.Time) (int64, error) {
	var count int64
	err := d.db.Model(&types.Order{}).
		Where("transaction_datetime >= ? AND transaction_datetime < ?", start, end).
		Count(&count).Error
	return count, err
}

func (d *Database) AvgOrderValueBetween(start, end time.Time) (float64, error) {
	var avg float64
	err := d.db.Model(&types.Order{}).
		Where("transaction_datetime >= ? AND transaction_datetime < ?", start, end).
		Select("COALESCE(AVG(total_amount), 0)").
		Scan(&avg).Error
	return avg, err
}
