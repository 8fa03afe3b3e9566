package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepost/tradepost-api/internal/types"
)

func performHandle(t *testing.T, method string, data interface{}, err error) (int, Response) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", nil)

	Handle(c, data, err)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestHandleSuccess(t *testing.T) {
	status, resp := performHandle(t, "GET", gin.H{"message": "ok"}, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)

	// POST success maps to 201
	status, _ = performHandle(t, "POST", gin.H{"message": "ok"}, nil)
	assert.Equal(t, http.StatusCreated, status)
}

func TestHandleErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("order 7: %w", types.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{fmt.Errorf("bad move: %w", types.ErrInvalidTransition), http.StatusConflict, ErrCodeInvalidState},
		{fmt.Errorf("bad amount: %w", types.ErrValidation), http.StatusUnprocessableEntity, ErrCodeValidationFailed},
		{fmt.Errorf("provider down: %w", types.ErrGateway), http.StatusBadGateway, ErrCodeGatewayError},
		{fmt.Errorf("stale write: %w", types.ErrConflict), http.StatusConflict, ErrCodeDuplicateResource},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tc := range cases {
		status, resp := performHandle(t, "GET", nil, tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, tc.code, resp.Error.Code, tc.err.Error())
	}
}
