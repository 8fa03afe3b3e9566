package reconciliation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper re-drives finalize chains that were cut short, for example when
// the process died after the settle transaction committed but before the
// sale was recorded. Only orders whose payment the gateway already completed
// qualify; Finalize is idempotent, so replaying them is safe.
type Sweeper struct {
	service    *Service
	sweepDelay time.Duration
}

func NewSweeper(service *Service) *Sweeper {
	return &Sweeper{
		service:    service,
		sweepDelay: 5 * time.Minute,
	}
}

// Start begins the reconciliation sweep loop
func (s *Sweeper) Start(ctx context.Context) {
	logger := log.With().Str("component", "reconciliation_sweeper").Logger()
	logger.Info().Msg("starting reconciliation sweeper")

	ticker := time.NewTicker(s.sweepDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down reconciliation sweeper")
			return
		case <-ticker.C:
			if err := s.sweep(); err != nil {
				logger.Error().Err(err).Msg("reconciliation sweep failed")
			}
		}
	}
}

func (s *Sweeper) sweep() error {
	logger := log.With().Str("component", "reconciliation_sweeper").Logger()

	orders, err := s.service.GetDB().GetIncompleteReconciliations()
	if err != nil {
		return err
	}

	if len(orders) == 0 {
		return nil
	}

	logger.Info().Int("incomplete_count", len(orders)).Msg("replaying incomplete reconciliations")

	for _, order := range orders {
		if err := s.service.Finalize(order.OrderID); err != nil {
			logger.Error().
				Err(err).
				Uint("order_id", order.OrderID).
				Msg("failed to replay reconciliation")
			continue
		}
	}

	return nil
}
