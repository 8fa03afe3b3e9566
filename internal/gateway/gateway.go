package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tradepost/tradepost-api/internal/types"
)

// SessionParams describes a hosted-checkout session request.
type SessionParams struct {
	AmountMinorUnits int64
	Currency         string
	SuccessURL       string
	CancelURL        string
	ProductName      string
}

// Provider creates hosted-checkout sessions with an external payment
// processor. The real integration is swapped in behind this interface.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (string, error)
}

// MockProvider simulates a hosted-checkout payment processor with
// configurable latency and success rate.
type MockProvider struct {
	MinLatency  int // in milliseconds
	MaxLatency  int
	SuccessRate float64 // 0-1, probability of a successful session creation
}

// NewMockProvider returns a provider tuned to behave like a healthy
// production processor.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		MinLatency:  10,
		MaxLatency:  80,
		SuccessRate: 0.98,
	}
}

// CreateCheckoutSession simulates a session-creation round trip.
func (p *MockProvider) CreateCheckoutSession(ctx context.Context, params SessionParams) (string, error) {
	logger := log.With().
		Int64("amount_minor_units", params.AmountMinorUnits).
		Str("currency", params.Currency).
		Str("service", "gateway").
		Logger()

	logger.Debug().Msg("creating hosted checkout session")

	if params.AmountMinorUnits <= 0 {
		return "", fmt.Errorf("amount must be positive: %w", types.ErrValidation)
	}

	// Simulate random latency
	latency := rand.Intn(p.MaxLatency-p.MinLatency+1) + p.MinLatency
	select {
	case <-time.After(time.Duration(latency) * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if rand.Float64() > p.SuccessRate {
		logger.Warn().Float64("success_rate", p.SuccessRate).Msg("provider rejected session creation")
		return "", fmt.Errorf("provider rejected session creation")
	}

	sessionID := "cs_" + uuid.New().String()
	logger.Info().Str("session_id", sessionID).Msg("checkout session created")

	return sessionID, nil
}

const (
	attemptTimeout = 2 * time.Second
	maxAttempts    = 2 // one retry after the first failure
)

// Client wraps a Provider with the bounded timeout and single-retry policy
// applied to every outbound call.
type Client struct {
	provider Provider
}

// NewClient creates a gateway client around the given provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// CreateCheckoutSession calls the provider with a per-attempt timeout and a
// single retry. Exhaustion surfaces as a gateway error wrapping the last
// failure reason.
func (c *Client) CreateCheckoutSession(ctx context.Context, params SessionParams) (string, error) {
	logger := log.With().
		Str("currency", params.Currency).
		Int64("amount_minor_units", params.AmountMinorUnits).
		Str("service", "gateway").
		Logger()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		sessionID, err := c.provider.CreateCheckoutSession(attemptCtx, params)
		cancel()

		if err == nil {
			return sessionID, nil
		}

		lastErr = err
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Msg("checkout session attempt failed")
	}

	return "", fmt.Errorf("checkout session creation failed after %d attempts: %v: %w",
		maxAttempts, lastErr, types.ErrGateway)
}
