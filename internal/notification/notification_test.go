package notification

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepost/tradepost-api/internal/database"
	"github.com/tradepost/tradepost-api/internal/types"
)

func setupTest(t *testing.T) *Service {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	return NewService(db)
}

func TestSendAndList(t *testing.T) {
	service := setupTest(t)

	require.NoError(t, service.Send(1, "Buy Request Approved", "Your buy request for product Road Bike has been approved."))
	require.NoError(t, service.Send(1, "Purchase Completed", "Congratulations on your new purchase."))
	require.NoError(t, service.Send(2, "Product Sold", "Congratulations! Your product is sold."))

	inbox, err := service.ListForUser(1)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.False(t, inbox[0].IsRead)

	other, err := service.ListForUser(2)
	require.NoError(t, err)
	assert.Len(t, other, 1)

	empty, err := service.ListForUser(3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMarkRead(t *testing.T) {
	service := setupTest(t)

	require.NoError(t, service.Send(1, "Buy Request Approved", "approved"))

	inbox, err := service.ListForUser(1)
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	updated, err := service.MarkRead(inbox[0].NotificationID)
	require.NoError(t, err)
	assert.True(t, updated.IsRead)

	_, err = service.MarkRead(9999)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
