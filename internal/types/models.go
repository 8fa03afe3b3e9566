package types

import "time"

// Trade request statuses
const (
	TradeStatusPending   = "pending"
	TradeStatusApproved  = "approved"
	TradeStatusRejected  = "rejected"
	TradeStatusCanceled  = "canceled"
	TradeStatusCompleted = "completed"
)

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

// User roles
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	Password  string    `json:"-"`
	Role      string    `json:"role"` // member or admin
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Product struct {
	ProductID uint      `gorm:"primaryKey" json:"product_id"`
	SellerID  uint      `gorm:"index" json:"seller_id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Unlisted  bool      `json:"unlisted"` // hidden by admin moderation
	Sold      bool      `json:"sold"`     // terminal once a trade completes
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TradeRequest struct {
	RequestID      uint      `gorm:"primaryKey" json:"request_id"`
	ProductID      uint      `gorm:"index" json:"product_id"`
	BuyerID        uint      `gorm:"index" json:"buyer_id"`
	SellerID       uint      `gorm:"index" json:"seller_id"`
	RequestedPrice float64   `json:"requested_price"`
	RequestStatus  string    `gorm:"index" json:"request_status"` // pending, approved, rejected, canceled, completed
	RequestedAt    time.Time `json:"requested_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Order struct {
	OrderID             uint      `gorm:"primaryKey" json:"order_id"`
	BuyerID             uint      `gorm:"index" json:"buyer_id"`
	ProductID           uint      `gorm:"index" json:"product_id"`
	TotalAmount         float64   `json:"total_amount"`
	OrderStatus         string    `gorm:"index" json:"order_status"` // PENDING, SHIPPED, DELIVERED, CANCELLED
	ShippingAddressID   uint      `json:"shipping_address_id"`
	PaymentID           uint      `json:"payment_id"`
	TransactionDatetime time.Time `json:"transaction_datetime"`
	AdminComments       string    `json:"admin_comments,omitempty"`
	Version             int       `json:"-"` // optimistic lock for admin moderation
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type Payment struct {
	PaymentID     uint      `gorm:"primaryKey" json:"payment_id"`
	PaymentRef    string    `gorm:"uniqueIndex" json:"payment_ref"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"` // pending, completed
	Amount        float64   `json:"amount"`
	PaymentDate   time.Time `json:"payment_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ShippingAddress struct {
	AddressID   uint      `gorm:"primaryKey" json:"address_id"`
	BillingName string    `json:"billing_name"`
	Country     string    `json:"country"`
	Line1       string    `json:"line1"`
	Line2       string    `json:"line2,omitempty"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	PostalCode  string    `json:"postal_code"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SoldItem is the append-only audit record of a completed sale. At most one
// row exists per product; RecordSale guards the uniqueness.
type SoldItem struct {
	SoldItemID uint      `gorm:"primaryKey" json:"sold_item_id"`
	SellerID   uint      `gorm:"index" json:"seller_id"`
	ProductID  uint      `gorm:"uniqueIndex" json:"product_id"`
	SoldDate   time.Time `json:"sold_date"`
	CreatedAt  time.Time `json:"created_at"`
}

type Notification struct {
	NotificationID uint      `gorm:"primaryKey" json:"notification_id"`
	UserID         uint      `gorm:"index" json:"user_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// tradeTransitions is the closed transition table for trade requests.
// Terminal statuses (rejected, canceled, completed) have no outgoing edges.
var tradeTransitions = map[string][]string{
	TradeStatusPending:  {TradeStatusApproved, TradeStatusRejected, TradeStatusCanceled},
	TradeStatusApproved: {TradeStatusCompleted, TradeStatusCanceled},
}

// ValidTradeStatus reports whether s is a known trade request status.
func ValidTradeStatus(s string) bool {
	switch s {
	case TradeStatusPending, TradeStatusApproved, TradeStatusRejected,
		TradeStatusCanceled, TradeStatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether a trade request may move from one status to
// another.
func CanTransition(from, to string) bool {
	for _, next := range tradeTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
