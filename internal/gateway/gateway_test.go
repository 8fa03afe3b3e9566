package gateway

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepost/tradepost-api/internal/types"
)

type countingProvider struct {
	calls     int
	failCount int // fail this many calls before succeeding
}

func (p *countingProvider) CreateCheckoutSession(ctx context.Context, params SessionParams) (string, error) {
	p.calls++
	if p.calls <= p.failCount {
		return "", fmt.Errorf("provider unavailable")
	}
	return "cs_stub", nil
}

func testParams() SessionParams {
	return SessionParams{
		AmountMinorUnits: 8000,
		Currency:         "cad",
		SuccessURL:       "http://localhost:3000/payment/success",
		CancelURL:        "http://localhost:3000/payment/fail",
		ProductName:      "Road Bike",
	}
}

func TestClientSuccess(t *testing.T) {
	provider := &countingProvider{}
	client := NewClient(provider)

	sessionID, err := client.CreateCheckoutSession(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, "cs_stub", sessionID)
	assert.Equal(t, 1, provider.calls)
}

func TestClientRetriesOnce(t *testing.T) {
	provider := &countingProvider{failCount: 1}
	client := NewClient(provider)

	sessionID, err := client.CreateCheckoutSession(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, "cs_stub", sessionID)
	assert.Equal(t, 2, provider.calls)
}

func TestClientExhaustsAttempts(t *testing.T) {
	provider := &countingProvider{failCount: 10}
	client := NewClient(provider)

	_, err := client.CreateCheckoutSession(context.Background(), testParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrGateway)
	assert.Equal(t, 2, provider.calls)
}

func TestMockProviderCreatesSession(t *testing.T) {
	provider := &MockProvider{MinLatency: 0, MaxLatency: 1, SuccessRate: 1}

	sessionID, err := provider.CreateCheckoutSession(context.Background(), testParams())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sessionID, "cs_"))
}

func TestMockProviderRejectsNonPositiveAmount(t *testing.T) {
	provider := &MockProvider{MinLatency: 0, MaxLatency: 1, SuccessRate: 1}

	params := testParams()
	params.AmountMinorUnits = 0

	_, err := provider.CreateCheckoutSession(context.Background(), params)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestMockProviderHonorsContext(t *testing.T) {
	provider := &MockProvider{MinLatency: 50, MaxLatency: 100, SuccessRate: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.CreateCheckoutSession(ctx, testParams())
	assert.ErrorIs(t, err, context.Canceled)
}
