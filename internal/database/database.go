package database

import (
	"fmt"

	"github.com/tradepost/tradepost-api/internal/database/migrations"
	"github.com/tradepost/tradepost-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Surface unique-index violations as gorm.ErrDuplicatedKey instead of
		// raw sqlite errors
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&types.User{},
		&types.Product{},
		&types.TradeRequest{},
		&types.Order{},
		&types.Payment{},
		&types.ShippingAddress{},
		&types.SoldItem{},
		&types.Notification{},
	)
	if err != nil {
		return nil, err
	}

	if err := migrations.AddApprovedRequestIndex(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
