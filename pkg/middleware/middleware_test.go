package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepost/tradepost-api/internal/types"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func memberToken(t *testing.T) string {
	return signToken(t, jwt.MapClaims{
		"user_id": float64(7),
		"role":    types.RoleMember,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
}

func adminToken(t *testing.T) string {
	return signToken(t, jwt.MapClaims{
		"user_id": float64(8),
		"role":    types.RoleAdmin,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
}

func perform(router *gin.Engine, method, path, remoteAddr, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit())
	router.POST("/api/v1/auth/token", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// the auth limiter allows a burst of 5
	for i := 0; i < 5; i++ {
		w := perform(router, "POST", "/api/v1/auth/token", "192.0.2.10:1234", "")
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := perform(router, "POST", "/api/v1/auth/token", "192.0.2.10:1234", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a different client IP has its own bucket
	w = perform(router, "POST", "/api/v1/auth/token", "192.0.2.11:1234", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthSetsIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWTAuth(testSecret))

	var gotUserID uint
	var gotRole string
	router.GET("/api/v1/whoami", func(c *gin.Context) {
		if v, exists := c.Get("userID"); exists {
			gotUserID = v.(uint)
		}
		gotRole = c.GetString("role")
		c.Status(http.StatusOK)
	})

	w := perform(router, "GET", "/api/v1/whoami", "192.0.2.20:1234", memberToken(t))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(7), gotUserID)
	assert.Equal(t, types.RoleMember, gotRole)
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWTAuth(testSecret))
	router.GET("/api/v1/whoami", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// missing header
	w := perform(router, "GET", "/api/v1/whoami", "192.0.2.21:1234", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// garbage token
	w = perform(router, "GET", "/api/v1/whoami", "192.0.2.21:1234", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// missing user_id claim
	incomplete := signToken(t, jwt.MapClaims{
		"role": types.RoleMember,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	w = perform(router, "GET", "/api/v1/whoami", "192.0.2.21:1234", incomplete)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWTAuth(testSecret), AdminOnly())
	router.GET("/api/v1/admin/orders", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := perform(router, "GET", "/api/v1/admin/orders", "192.0.2.30:1234", memberToken(t))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(router, "GET", "/api/v1/admin/orders", "192.0.2.30:1234", adminToken(t))
	assert.Equal(t, http.StatusOK, w.Code)
}
