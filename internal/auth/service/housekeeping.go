package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultSweepInterval = 10 * time.Minute

// HousekeepingService deletes expired link and invite tokens on a timer.
// Reads already ignore expired rows; the sweep only keeps the table small.
type HousekeepingService struct {
	Tokens   *TokenBroker
	Logger   *slog.Logger
	Interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHousekeepingService sweeps every interval, or every ten minutes when
// interval is not positive.
func NewHousekeepingService(tokens *TokenBroker, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &HousekeepingService{Tokens: tokens, Logger: logger, Interval: interval}
}

// Start sweeps once before returning, then on every tick until Stop.
func (s *HousekeepingService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.sweep(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop cancels the loop and waits for a sweep in flight.
func (s *HousekeepingService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) loop(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *HousekeepingService) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Interval)
	defer cancel()

	n, err := s.Tokens.PurgeExpired(ctx)
	switch {
	case err != nil && ctx.Err() == nil:
		s.Logger.Error("token sweep failed", "error", err)
	case n > 0:
		s.Logger.Debug("token sweep", "deleted", n)
	}
}
