package negotiation

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepost/tradepost-api/internal/database"
	"github.com/tradepost/tradepost-api/internal/types"
	"gorm.io/gorm"
)

// recordingDispatcher captures notifications instead of persisting them.
type recordingDispatcher struct {
	sent []sentNotification
	fail bool
}

type sentNotification struct {
	userID uint
	title  string
}

func (d *recordingDispatcher) Send(userID uint, title, message string) error {
	if d.fail {
		return fmt.Errorf("dispatch unavailable")
	}
	d.sent = append(d.sent, sentNotification{userID: userID, title: title})
	return nil
}

func setupTest(t *testing.T) (*gorm.DB, *Service, *recordingDispatcher) {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	dispatcher := &recordingDispatcher{}
	return db, NewService(db, dispatcher), dispatcher
}

func seedUsersAndProduct(t *testing.T, db *gorm.DB, price float64) (buyer, seller types.User, product types.Product) {
	t.Helper()

	buyer = types.User{Name: "Buyer", Email: "buyer@example.com", Role: types.RoleMember}
	require.NoError(t, db.Create(&buyer).Error)

	seller = types.User{Name: "Seller", Email: "seller@example.com", Role: types.RoleMember}
	require.NoError(t, db.Create(&seller).Error)

	product = types.Product{SellerID: seller.UserID, Title: "Road Bike", Price: price}
	require.NoError(t, db.Create(&product).Error)

	return buyer, seller, product
}

func TestCreateTradeRequest(t *testing.T) {
	db, service, _ := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	request, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 80)
	require.NoError(t, err)

	assert.NotZero(t, request.RequestID)
	assert.Equal(t, types.TradeStatusPending, request.RequestStatus)
	assert.Equal(t, 80.0, request.RequestedPrice)
	assert.False(t, request.RequestedAt.IsZero())
}

func TestCreateTradeRequestValidation(t *testing.T) {
	db, service, _ := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	_, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 0)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, -5)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = service.CreateTradeRequest(buyer.UserID, 9999, seller.UserID, 80)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = service.CreateTradeRequest(buyer.UserID, product.ProductID, 9999, 80)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCreateTradeRequestSoldProduct(t *testing.T) {
	db, service, _ := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	product.Sold = true
	require.NoError(t, db.Save(&product).Error)

	_, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 80)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestUpdateStatusTransitions(t *testing.T) {
	db, service, dispatcher := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	request, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 80)
	require.NoError(t, err)

	// pending cannot jump straight to completed
	_, err = service.UpdateStatus(request.RequestID, types.TradeStatusCompleted)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	updated, err := service.UpdateStatus(request.RequestID, types.TradeStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, types.TradeStatusApproved, updated.RequestStatus)

	// approved cannot be rejected
	_, err = service.UpdateStatus(request.RequestID, types.TradeStatusRejected)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	updated, err = service.UpdateStatus(request.RequestID, types.TradeStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, types.TradeStatusCompleted, updated.RequestStatus)

	// completed is terminal
	_, err = service.UpdateStatus(request.RequestID, types.TradeStatusCanceled)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	// buyer was notified on approve; buyer and seller on complete
	assert.Len(t, dispatcher.sent, 3)
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	db, service, _ := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	request, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 80)
	require.NoError(t, err)

	_, err = service.UpdateStatus(request.RequestID, "SHIPPED")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestUpdateStatusMissingRequest(t *testing.T) {
	_, service, _ := setupTest(t)

	_, err := service.UpdateStatus(42, types.TradeStatusApproved)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestApproveSoldProductRejected(t *testing.T) {
	db, service, _ := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	request, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 80)
	require.NoError(t, err)

	product.Sold = true
	require.NoError(t, db.Save(&product).Error)

	_, err = service.UpdateStatus(request.RequestID, types.TradeStatusApproved)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestSecondApprovalForSamePairConflicts(t *testing.T) {
	db, service, _ := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	first, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 80)
	require.NoError(t, err)
	second, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 85)
	require.NoError(t, err)

	_, err = service.UpdateStatus(first.RequestID, types.TradeStatusApproved)
	require.NoError(t, err)

	_, err = service.UpdateStatus(second.RequestID, types.TradeStatusApproved)
	assert.ErrorIs(t, err, types.ErrConflict)

	// exactly one approved request for the pair, so the price oracle stays
	// unambiguous
	var count int64
	require.NoError(t, db.Model(&types.TradeRequest{}).
		Where("product_id = ? AND buyer_id = ? AND request_status = ?",
			product.ProductID, buyer.UserID, types.TradeStatusApproved).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	amount, err := service.GetApprovedAmount(product.ProductID, buyer.UserID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, amount)
}

func TestGetApprovedAmount(t *testing.T) {
	db, service, _ := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	_, err := service.GetApprovedAmount(product.ProductID, buyer.UserID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	request, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 80)
	require.NoError(t, err)

	// a pending request does not price an order
	_, err = service.GetApprovedAmount(product.ProductID, buyer.UserID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = service.UpdateStatus(request.RequestID, types.TradeStatusApproved)
	require.NoError(t, err)

	amount, err := service.GetApprovedAmount(product.ProductID, buyer.UserID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, amount)
}

func TestCompleteByProduct(t *testing.T) {
	db, service, dispatcher := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	// no approved request is a reported no-op, not a failure
	result, err := service.CompleteByProduct(product.ProductID, buyer.UserID)
	require.NoError(t, err)
	assert.Contains(t, result, "no approved trade request")

	request, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 80)
	require.NoError(t, err)
	_, err = service.UpdateStatus(request.RequestID, types.TradeStatusApproved)
	require.NoError(t, err)

	dispatcher.sent = nil

	result, err = service.CompleteByProduct(product.ProductID, buyer.UserID)
	require.NoError(t, err)
	assert.Equal(t, "trade request completed", result)

	var stored types.TradeRequest
	require.NoError(t, db.First(&stored, request.RequestID).Error)
	assert.Equal(t, types.TradeStatusCompleted, stored.RequestStatus)

	// completion notifies both parties
	require.Len(t, dispatcher.sent, 2)
	assert.Equal(t, buyer.UserID, dispatcher.sent[0].userID)
	assert.Equal(t, seller.UserID, dispatcher.sent[1].userID)

	// the request is no longer approved, so a replay is a no-op
	result, err = service.CompleteByProduct(product.ProductID, buyer.UserID)
	require.NoError(t, err)
	assert.Contains(t, result, "no approved trade request")
}

func TestNotificationFailureDoesNotBlockTransition(t *testing.T) {
	db, service, dispatcher := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	request, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 80)
	require.NoError(t, err)

	dispatcher.fail = true

	updated, err := service.UpdateStatus(request.RequestID, types.TradeStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, types.TradeStatusApproved, updated.RequestStatus)
}

func TestListRequestsByParty(t *testing.T) {
	db, service, _ := setupTest(t)
	buyer, seller, product := seedUsersAndProduct(t, db, 100)

	other := types.Product{SellerID: seller.UserID, Title: "Desk Lamp", Price: 40}
	require.NoError(t, db.Create(&other).Error)

	_, err := service.CreateTradeRequest(buyer.UserID, product.ProductID, seller.UserID, 80)
	require.NoError(t, err)
	_, err = service.CreateTradeRequest(buyer.UserID, other.ProductID, seller.UserID, 35)
	require.NoError(t, err)

	buying, err := service.ListBuyerRequests(buyer.UserID)
	require.NoError(t, err)
	assert.Len(t, buying, 2)

	selling, err := service.ListSellerRequests(seller.UserID)
	require.NoError(t, err)
	assert.Len(t, selling, 2)

	none, err := service.ListBuyerRequests(seller.UserID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
