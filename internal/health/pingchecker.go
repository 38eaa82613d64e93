package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// PingChecker adapts a HealthPinger (object store, platform API) into a
// HealthChecker that polls it on an interval.
type PingChecker struct {
	name    string
	pinger  HealthPinger
	timeout time.Duration
	healthy atomic.Int32
	log     zerolog.Logger
}

func NewPingChecker(name string, pinger HealthPinger, log zerolog.Logger) *PingChecker {
	return &PingChecker{name: name, pinger: pinger, timeout: 5 * time.Second, log: log}
}

func (p *PingChecker) Name() string { return p.name }

func (p *PingChecker) IsHealthy() bool { return p.healthy.Load() == 1 }

// Start polls the pinger until the context ends. The first poll runs
// immediately so startup health is known without waiting an interval.
func (p *PingChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	eval := func() {
		pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.pinger.HealthPing(pingCtx)
		cancel()
		if err != nil {
			if p.healthy.Swap(0) == 1 {
				p.log.Error().Stack().Err(err).Str("component", p.name).Msg("component health: DOWN")
			}
			return
		}
		if p.healthy.Swap(1) == 0 {
			p.log.Info().Str("component", p.name).Msg("component health: UP")
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
