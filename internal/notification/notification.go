package notification

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

// Dispatcher delivers (recipient, title, message) triples. The negotiation
// engine treats delivery as fire-and-forget: failures are logged by the
// caller, never propagated.
type Dispatcher interface {
	Send(userID uint, title, message string) error
}

// Service persists notifications and exposes the user's inbox.
type Service struct {
	db *Database
}

// NewService creates a new notification service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Send stores a notification for the user. Implements Dispatcher.
func (s *Service) Send(userID uint, title, message string) error {
	notification := &types.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if err := s.db.CreateNotification(notification); err != nil {
		return err
	}

	log.Info().
		Uint("user_id", userID).
		Str("title", title).
		Str("service", "notification").
		Msg("notification dispatched")

	return nil
}

// ListForUser returns all notifications for a user, newest first.
func (s *Service) ListForUser(userID uint) ([]types.Notification, error) {
	return s.db.GetUserNotifications(userID)
}

// MarkRead flags a notification as read.
func (s *Service) MarkRead(notificationID uint) (*types.Notification, error) {
	notification, err := s.db.GetNotification(notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("notification %d: %w", notificationID, types.ErrNotFound)
		}
		return nil, err
	}

	notification.IsRead = true
	if err := s.db.UpdateNotification(notification); err != nil {
		return nil, err
	}
	return notification, nil
}

// GinHandlers contains HTTP handlers for notification endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListNotificationsHandler handles GET requests for the caller's inbox
func (h *GinHandlers) ListNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		notifications, err := h.service.ListForUser(userID)
		response.Handle(c, notifications, err)
	}
}

// MarkReadHandler handles PUT requests to mark a notification as read
// URL parameter: notification_id
func (h *GinHandlers) MarkReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		notificationID, err := parseUintParam(c, "notification_id")
		if err != nil {
			response.BadRequest(c, "Invalid notification ID")
			return
		}

		notification, err := h.service.MarkRead(notificationID)
		response.Handle(c, notification, err)
	}
}
