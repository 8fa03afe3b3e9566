package notification

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tradepost/tradepost-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateNotification(notification *types.Notification) error {
	return d.db.Create(notification).Error
}

func (d *Database) GetNotification(notificationID uint) (*types.Notification, error) {
	var notification types.Notification
	if err := d.db.First(&notification, notificationID).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

func (d *Database) GetUserNotifications(userID uint) ([]types.Notification, error) {
	var notifications []types.Notification
	if err := d.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (d *Database) UpdateNotification(notification *types.Notification) error {
	return d.db.Save(notification).Error
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	return uint(v), err
}
