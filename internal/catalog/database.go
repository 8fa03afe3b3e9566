package catalog

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

func (d *Database) CreateProduct(product *types.Product) error {
	return d.db.Create(product).Error
}

func (d *Database) GetProduct(productID uint) (*types.Product, error) {
	var product types.Product
	if err := d.db.First(&product, productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (d *Database) UpdateProduct(product *types.Product) error {
	return d.db.Save(product).Error
}

func (d *Database) GetUser(userID uint) (*types.User, error) {
	var user types.User
	if err := d.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
