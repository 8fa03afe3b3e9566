package auth

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

	service := NewService(db, "test-secret")

	_, err = service.RegisterUser("Demo Buyer", "buyer@example.com", "buyer-secret", types.RoleMember)
	require.NoError(t, err)

	return service
}

func TestGenerateAndValidateToken(t *testing.T) {
	service := setupTest(t)

	token, err := service.GenerateToken(Credentials{
		Email:    "buyer@example.com",
		Password: "buyer-secret",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)
	assert.False(t, token.Expiration.IsZero())

	claims, err := service.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.NotZero(t, claims.UserID)
	assert.Equal(t, types.RoleMember, claims.Role)
}

func TestGenerateTokenInvalidCredentials(t *testing.T) {
	service := setupTest(t)

	_, err := service.GenerateToken(Credentials{
		Email:    "buyer@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.GenerateToken(Credentials{
		Email:    "nobody@example.com",
		Password: "buyer-secret",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	service := setupTest(t)

	token, err := service.GenerateToken(Credentials{
		Email:    "buyer@example.com",
		Password: "buyer-secret",
	})
	require.NoError(t, err)

	_, err = service.ValidateToken(token.Token + "x")
	assert.Error(t, err)

	_, err = service.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestRegisterUserDuplicateEmail(t *testing.T) {
	service := setupTest(t)

	_, err := service.RegisterUser("Other", "buyer@example.com", "pw", types.RoleMember)
	assert.Error(t, err)
}
