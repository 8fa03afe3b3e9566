package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepost/tradepost-api/internal/database"
	"github.com/tradepost/tradepost-api/internal/types"
	"gorm.io/gorm"
)

func setupTest(t *testing.T) (*gorm.DB, *Service, types.User) {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	seller := types.User{Name: "Seller", Email: "seller@example.com", Role: types.RoleMember}
	require.NoError(t, db.Create(&seller).Error)

	return db, NewService(db), seller
}

func TestCreateProduct(t *testing.T) {
	_, service, seller := setupTest(t)

	product, err := service.CreateProduct(seller.UserID, "Film Camera", 120)
	require.NoError(t, err)

	assert.NotZero(t, product.ProductID)
	assert.Equal(t, seller.UserID, product.SellerID)
	assert.False(t, product.Sold)
	assert.False(t, product.Unlisted)
}

func TestCreateProductValidation(t *testing.T) {
	_, service, seller := setupTest(t)

	_, err := service.CreateProduct(seller.UserID, "Film Camera", 0)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = service.CreateProduct(seller.UserID, "Film Camera", -10)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = service.CreateProduct(9999, "Film Camera", 120)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestGetProductMissing(t *testing.T) {
	_, service, _ := setupTest(t)

	_, err := service.GetProduct(9999)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMarkSoldIdempotent(t *testing.T) {
	_, service, seller := setupTest(t)

	product, err := service.CreateProduct(seller.UserID, "Film Camera", 120)
	require.NoError(t, err)

	require.NoError(t, service.MarkSold(product.ProductID))
	require.NoError(t, service.MarkSold(product.ProductID))

	stored, err := service.GetProduct(product.ProductID)
	require.NoError(t, err)
	assert.True(t, stored.Sold)
}

func TestSetUnlisted(t *testing.T) {
	_, service, seller := setupTest(t)

	product, err := service.CreateProduct(seller.UserID, "Film Camera", 120)
	require.NoError(t, err)

	require.NoError(t, service.SetUnlisted(product.ProductID, true))
	stored, err := service.GetProduct(product.ProductID)
	require.NoError(t, err)
	assert.True(t, stored.Unlisted)

	require.NoError(t, service.SetUnlisted(product.ProductID, false))
	stored, err = service.GetProduct(product.ProductID)
	require.NoError(t, err)
	assert.False(t, stored.Unlisted)

	assert.ErrorIs(t, service.SetUnlisted(9999, true), types.ErrNotFound)
}
