package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthlab-css/glowup-mrt/internal/model"
)

var testNow = time.Date(2025, 8, 7, 14, 0, 0, 0, time.UTC)

func jsonUnmarshal(raw string, v interface{}) error {
	return json.Unmarshal([]byte(raw), v)
}

func testAPI(t *testing.T, handler http.HandlerFunc) *DeviceDataAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	api := NewDeviceDataAPI(srv.URL, "proj-1")
	api.now = func() time.Time { return testNow }
	return api
}

func stepPoint(ts, source string, value int) string {
	return fmt.Sprintf(`{
		"type": "Steps",
		"value": "%d",
		"startDate": "%s",
		"source": {"properties": {"SourceName": "%s"}}
	}`, value, ts, source)
}

func TestAggregateStepsBySourceKeepsOnlyToday(t *testing.T) {
	api := testAPI(t, func(w http.ResponseWriter, r *http.Request) {})
	p := &deviceProvider{api: api, namespace: "AppleHealth", stepType: "Steps"}

	points := []DataPoint{}
	for _, raw := range []string{
		stepPoint("2025-08-07T09:00:00Z", "Watch", 2000),
		stepPoint("2025-08-07T11:00:00Z", "Watch", 1500),
		stepPoint("2025-08-07T10:00:00Z", "Phone", 900),
		stepPoint("2025-08-06T10:00:00Z", "Watch", 9999), // yesterday
	} {
		var dp DataPoint
		require.NoError(t, jsonUnmarshal(raw, &dp))
		points = append(points, dp)
	}
	// Unparseable value and timestamp are dropped silently.
	points = append(points,
		DataPoint{Type: "Steps", Value: "many", StartDate: "2025-08-07T09:00:00Z"},
		DataPoint{Type: "Steps", Value: "100", StartDate: "not a time"},
	)

	got := p.AggregateSteps(points, time.UTC)
	assert.Equal(t, map[string]float64{"Watch": 3500, "Phone": 900}, got)
}

func TestAggregateStepsRespectsLocalDay(t *testing.T) {
	api := testAPI(t, func(w http.ResponseWriter, r *http.Request) {})
	p := &deviceProvider{api: api, namespace: "AppleHealth", stepType: "Steps"}
	zurich, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)

	// 23:00 UTC yesterday is 01:00 today in Zurich.
	var dp DataPoint
	require.NoError(t, jsonUnmarshal(stepPoint("2025-08-06T23:00:00Z", "Watch", 500), &dp))

	assert.Empty(t, p.AggregateSteps([]DataPoint{dp}, time.UTC))
	assert.Equal(t, map[string]float64{"Watch": 500}, p.AggregateSteps([]DataPoint{dp}, zurich))
}

func TestAggregateSleepCountsStagesOnly(t *testing.T) {
	api := testAPI(t, func(w http.ResponseWriter, r *http.Request) {})
	p := &deviceProvider{
		api: api, namespace: "AppleHealth",
		stepType: "Steps", sleepType: "Sleep Analysis",
		sleepStages: []string{"Asleep", "InBed"},
	}

	points := []DataPoint{
		{Type: "Sleep Analysis", Value: "Asleep", StartDate: "2025-08-07T00:00:00Z", EndDate: "2025-08-07T06:30:00Z"},
		{Type: "Sleep Analysis", Value: "InBed", StartDate: "2025-08-07T06:30:00Z", EndDate: "2025-08-07T07:00:00Z"},
		{Type: "Sleep Analysis", Value: "Awake", StartDate: "2025-08-07T07:00:00Z", EndDate: "2025-08-07T08:00:00Z"},
		{Type: "Heart Rate", Value: "Asleep", StartDate: "2025-08-07T01:00:00Z", EndDate: "2025-08-07T02:00:00Z"},
	}
	assert.InDelta(t, 7.0, p.AggregateSleep(points, time.UTC), 0.001)
}

func TestCollectDegradesToExplicitNull(t *testing.T) {
	api := testAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	})
	reg := NewRegistry(api)
	p := model.Participant{ID: "p1", Platform: model.PlatformIOS, Timezone: "UTC"}

	signals := reg.Collect(context.Background(), "tok", p, zerolog.Nop())

	// Both keys present, both explicit nulls.
	require.Contains(t, signals, model.SignalSteps)
	require.Contains(t, signals, model.SignalSleep)
	_, ok := signals.Value(model.SignalSteps)
	assert.False(t, ok)
	_, ok = signals.Value(model.SignalSleep)
	assert.False(t, ok)
}

func TestCollectStepsUsesBestSource(t *testing.T) {
	api := testAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AppleHealth", r.URL.Query().Get("namespace"))
		if r.URL.Query().Get("type") == "Steps" {
			fmt.Fprintf(w, `{"deviceDataPoints":[%s,%s]}`,
				stepPoint("2025-08-07T09:00:00Z", "Watch", 4200),
				stepPoint("2025-08-07T09:00:00Z", "Phone", 3100))
			return
		}
		fmt.Fprint(w, `{"deviceDataPoints":[]}`)
	})
	reg := NewRegistry(api)
	p := model.Participant{ID: "p1", Platform: model.PlatformIOS, Timezone: "UTC"}

	signals := reg.Collect(context.Background(), "tok", p, zerolog.Nop())
	steps, ok := signals.Value(model.SignalSteps)
	require.True(t, ok)
	assert.Equal(t, 4200.0, steps, "overlapping sources must not be summed")
}

func TestCollectUnknownPlatform(t *testing.T) {
	reg := Registry{}
	p := model.Participant{ID: "p1", Platform: "Pager"}
	signals := reg.Collect(context.Background(), "tok", p, zerolog.Nop())
	_, ok := signals.Value(model.SignalSteps)
	assert.False(t, ok)
}
