package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Service is one continuous bounded-batch worker. Tick claims and processes
// at most one batch and reports how many items it handled.
type Service interface {
	Name() string
	Tick(ctx context.Context) (int, error)
}

// Loop drives a service until the context is cancelled: tick, sleep, repeat.
// A tick error is logged and the loop continues; only cancellation stops it.
// When a tick processes a full batch the sleep is skipped so a backlog
// drains at full speed.
//
// On cancellation no new claim is made; the in-flight tick gets up to grace
// to drain before its context is cut. Claims it could not finish expire via
// their lease.
func Loop(ctx context.Context, svc Service, interval time.Duration, batch int, grace time.Duration) {
	log.Info().Str("service", svc.Name()).Dur("interval", interval).Msg("service started")
	for ctx.Err() == nil {
		tickCtx, cancel := graceContext(ctx, grace)
		n, err := svc.Tick(tickCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Str("service", svc.Name()).Msg("tick failed")
		} else if n > 0 {
			log.Debug().Str("service", svc.Name()).Int("items", n).Msg("tick complete")
		}
		if n >= batch && batch > 0 && ctx.Err() == nil {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(interval):
		}
	}
	log.Info().Str("service", svc.Name()).Msg("service stopped")
}

// graceContext returns a context that outlives parent cancellation by grace,
// so an in-flight batch can drain during shutdown.
func graceContext(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		time.AfterFunc(grace, cancel)
	})
	return tctx, func() {
		stop()
		cancel()
	}
}
