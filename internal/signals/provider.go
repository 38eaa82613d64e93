// Package signals collects per-participant health signals (daily steps,
// sleep hours) from the platform-specific device-data providers. Provider
// failures never abort a trial pass; they degrade to absent signals.
package signals

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// DataPoint is one device data point as returned by the study platform.
type DataPoint struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Source    struct {
		Properties map[string]string `json:"properties"`
	} `json:"source"`
}

// Provider is the closed capability pair each platform implements: fetch
// raw points, aggregate them into a daily value in the participant's zone.
type Provider interface {
	FetchSteps(ctx context.Context, token, participantID string) ([]DataPoint, error)
	FetchSleep(ctx context.Context, token, participantID string) ([]DataPoint, error)
	AggregateSteps(points []DataPoint, loc *time.Location) map[string]float64
	AggregateSleep(points []DataPoint, loc *time.Location) float64
}

// Registry maps each platform to its provider; populated once at startup.
type Registry map[model.Platform]Provider

// Collect gathers the participant's signal set for today. Both signals are
// always present in the result as keys; a failed or empty read is an
// explicit null, not an omission.
func (r Registry) Collect(ctx context.Context, token string, p model.Participant, log zerolog.Logger) model.SignalSet {
	signals := model.SignalSet{
		model.SignalSteps: nil,
		model.SignalSleep: nil,
	}

	provider, ok := r[p.Platform]
	if !ok {
		log.Warn().Str("participant", p.ID).Str("platform", string(p.Platform)).Msg("no signal provider for platform")
		return signals
	}
	loc := p.Location()

	if points, err := provider.FetchSteps(ctx, token, p.ID); err != nil {
		log.Warn().Err(err).Str("participant", p.ID).Msg("step fetch failed, signal absent")
	} else if bySource := provider.AggregateSteps(points, loc); len(bySource) > 0 {
		// The daily total is the best single source, not the sum: sources
		// overlap (phone and watch both count the same walk).
		best := 0.0
		for _, v := range bySource {
			if v > best {
				best = v
			}
		}
		signals[model.SignalSteps] = &best
	}

	if points, err := provider.FetchSleep(ctx, token, p.ID); err != nil {
		log.Warn().Err(err).Str("participant", p.ID).Msg("sleep fetch failed, signal absent")
	} else {
		hours := provider.AggregateSleep(points, loc)
		signals[model.SignalSleep] = &hours
	}

	return signals
}
