// Package scheduler runs the periodic expiry sweep over gateway bookings
// still waiting for a payment result past the configured TTL.
package scheduler

import (
	"context"
	"time"

	bookingdomain "github.com/viharalabs/templedesk/internal/booking/domain"
	"github.com/viharalabs/templedesk/internal/clock"
	"github.com/viharalabs/templedesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Clock      clock.Clock
	BookingSvc bookingdomain.Service
}

type Scheduler struct {
	log        *zap.Logger
	cfg        config.Config
	clock      clock.Clock
	bookingSvc bookingdomain.Service
}

func New(p Params) *Scheduler {
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		cfg:        p.Cfg,
		clock:      p.Clock,
		bookingSvc: p.BookingSvc,
	}
}

// RunForever ticks until the context is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.cfg.ExpirySweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("expiry sweep started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweep stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce expires one batch of stale gateway bookings.
func (s *Scheduler) SweepOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := s.clock.Now().UTC().Add(-s.cfg.PendingBookingTTL)
	if _, err := s.bookingSvc.ExpireStale(sweepCtx, cutoff); err != nil {
		s.log.Warn("expiry sweep failed", zap.Error(err))
	}
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(start),
)

func start(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			go sched.RunForever(ctx)
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
