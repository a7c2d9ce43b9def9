package chat

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically closes sessions whose trial has run out, so stored
// rows reflect expiry even when the client never comes back.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper that runs every interval.
func NewSweeper(svc *Service, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{svc: svc, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled. Sweep errors are logged, not returned.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			closed, err := s.svc.ExpireStale(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if closed > 0 {
				s.logger.Info("expired trial sessions", zap.Int("count", closed))
			}
		}
	}
}
