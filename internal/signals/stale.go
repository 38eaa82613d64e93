package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultStalenessThreshold marks a feed stale when its newest data point
// is older than this.
const DefaultStalenessThreshold = 6 * time.Hour

// StalenessProbe checks whether a participant's wearable feed has gone
// quiet. It queries the sensor vendor's daily metrics for today and
// yesterday and looks at the newest raw timestamp.
type StalenessProbe struct {
	http      *resty.Client
	apiKey    string
	threshold time.Duration
	now       func() time.Time
}

// NewStalenessProbe builds a probe against the vendor metrics endpoint.
func NewStalenessProbe(baseURL, apiKey string, threshold time.Duration) *StalenessProbe {
	if threshold <= 0 {
		threshold = DefaultStalenessThreshold
	}
	return &StalenessProbe{
		http:      resty.New().SetBaseURL(baseURL).SetTimeout(20 * time.Second),
		apiKey:    apiKey,
		threshold: threshold,
		now:       time.Now,
	}
}

// FeedStatus is the probe outcome. LastSeen is nil when the vendor has no
// data at all for the window, which also counts as stale.
type FeedStatus struct {
	LastSeen *time.Time
	Stale    bool
}

// Check probes the feed for the account behind email. Request failures for
// a single day are tolerated; only a fully failed probe returns an error.
func (p *StalenessProbe) Check(ctx context.Context, email string) (FeedStatus, error) {
	now := p.now()

	var newest int64
	var anyResponse bool
	for _, daysAgo := range []int{0, 1} {
		ts, err := p.newestTimestamp(ctx, email, now.AddDate(0, 0, -daysAgo))
		if err != nil {
			continue
		}
		anyResponse = true
		if ts > newest {
			newest = ts
		}
	}
	if !anyResponse {
		return FeedStatus{}, fmt.Errorf("staleness probe: no metrics response for %s", email)
	}
	if newest == 0 {
		return FeedStatus{Stale: true}, nil
	}

	last := time.Unix(newest, 0).UTC()
	return FeedStatus{
		LastSeen: &last,
		Stale:    now.Sub(last) > p.threshold,
	}, nil
}

// vendor payload: data.metric_data[].object.values[]{value,timestamp}
type metricsResponse struct {
	Data struct {
		MetricData []struct {
			Object struct {
				Values []struct {
					Value     json.RawMessage `json:"value"`
					Timestamp int64           `json:"timestamp"`
				} `json:"values"`
			} `json:"object"`
		} `json:"metric_data"`
	} `json:"data"`
}

func (p *StalenessProbe) newestTimestamp(ctx context.Context, email string, day time.Time) (int64, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Authorization", p.apiKey).
		SetQueryParams(map[string]string{
			"email": email,
			"date":  day.Format("02/01/2006"),
		}).
		Get("")
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("metrics status %d", resp.StatusCode())
	}

	var body metricsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return 0, err
	}

	var newest int64
	for _, metric := range body.Data.MetricData {
		for _, v := range metric.Object.Values {
			// Only datapoints that actually carry a value count as activity.
			if len(v.Value) == 0 || string(v.Value) == "null" || string(v.Value) == `""` {
				continue
			}
			if v.Timestamp > newest {
				newest = v.Timestamp
			}
		}
	}
	return newest, nil
}
