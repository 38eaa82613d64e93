package signals

import (
	"context"
	"time"

	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// deviceProvider implements Provider for one platform namespace on the
// shared device-data API.
type deviceProvider struct {
	api       *DeviceDataAPI
	namespace string
	stepType  string
	sleepType string
	// sleepStages lists the point values that count as sleep; empty means
	// every point of sleepType counts.
	sleepStages []string
}

// NewRegistry wires one provider per supported platform.
func NewRegistry(api *DeviceDataAPI) Registry {
	return Registry{
		model.PlatformIOS: &deviceProvider{
			api: api, namespace: "AppleHealth",
			stepType: "Steps", sleepType: "Sleep Analysis",
			sleepStages: []string{"Asleep", "InBed"},
		},
		model.PlatformAndroid: &deviceProvider{
			api: api, namespace: "GoogleFit",
			stepType: "Steps", sleepType: "Sleep",
		},
		model.PlatformHealthConnect: &deviceProvider{
			api: api, namespace: "HealthConnect",
			stepType: "Steps", sleepType: "Sleep",
		},
		model.PlatformFitbit: &deviceProvider{
			api: api, namespace: "Fitbit",
			stepType: "Steps", sleepType: "Sleep",
		},
	}
}

func (p *deviceProvider) FetchSteps(ctx context.Context, token, participantID string) ([]DataPoint, error) {
	return fetchDataPoints(ctx, p.api, token, participantID, p.namespace, p.stepType)
}

func (p *deviceProvider) FetchSleep(ctx context.Context, token, participantID string) ([]DataPoint, error) {
	points, err := fetchDataPoints(ctx, p.api, token, participantID, p.namespace, "")
	if err != nil {
		return nil, err
	}
	var sleep []DataPoint
	for _, dp := range points {
		if dp.Type == p.sleepType {
			sleep = append(sleep, dp)
		}
	}
	return sleep, nil
}

// AggregateSteps totals today's steps per reporting source. Points with a
// bad timestamp or value are dropped, never fatal.
func (p *deviceProvider) AggregateSteps(points []DataPoint, loc *time.Location) map[string]float64 {
	now := p.api.now()
	totals := map[string]float64{}
	for _, dp := range points {
		if dp.Type != p.stepType {
			continue
		}
		start, err := parsePointTime(dp.StartDate)
		if err != nil || !onLocalDay(start, now, loc) {
			continue
		}
		steps, err := parseStepValue(dp.Value)
		if err != nil {
			continue
		}
		totals[sourceName(dp)] += steps
	}
	return totals
}

// AggregateSleep sums today's sleep intervals into hours.
func (p *deviceProvider) AggregateSleep(points []DataPoint, loc *time.Location) float64 {
	now := p.api.now()
	var total time.Duration
	for _, dp := range points {
		if dp.Type != p.sleepType || !p.countsAsSleep(dp.Value) {
			continue
		}
		start, err := parsePointTime(dp.StartDate)
		if err != nil || !onLocalDay(start, now, loc) {
			continue
		}
		end, err := parsePointTime(dp.EndDate)
		if err != nil || end.Before(start) {
			continue
		}
		total += end.Sub(start)
	}
	return total.Hours()
}

func (p *deviceProvider) countsAsSleep(value string) bool {
	if len(p.sleepStages) == 0 {
		return true
	}
	for _, stage := range p.sleepStages {
		if value == stage {
			return true
		}
	}
	return false
}
