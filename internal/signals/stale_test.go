package signals

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsBody(timestamps ...int64) string {
	values := ""
	for i, ts := range timestamps {
		if i > 0 {
			values += ","
		}
		values += fmt.Sprintf(`{"value": 61.2, "timestamp": %d}`, ts)
	}
	return fmt.Sprintf(`{"data":{"metric_data":[{"object":{"values":[%s]}}]}}`, values)
}

func newTestProbe(t *testing.T, handler http.HandlerFunc) *StalenessProbe {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewStalenessProbe(srv.URL, "uh-key", 6*time.Hour)
	p.now = func() time.Time { return testNow }
	return p
}

func TestCheckFreshFeed(t *testing.T) {
	recent := testNow.Add(-2 * time.Hour).Unix()
	probe := newTestProbe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "uh-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, metricsBody(recent))
	})

	status, err := probe.Check(context.Background(), "p1@example.org")
	require.NoError(t, err)
	assert.False(t, status.Stale)
	require.NotNil(t, status.LastSeen)
	assert.Equal(t, time.Unix(recent, 0).UTC(), *status.LastSeen)
}

func TestCheckStaleFeed(t *testing.T) {
	old := testNow.Add(-8 * time.Hour).Unix()
	probe := newTestProbe(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, metricsBody(old))
	})

	status, err := probe.Check(context.Background(), "p1@example.org")
	require.NoError(t, err)
	assert.True(t, status.Stale)
}

func TestCheckNoDataIsStale(t *testing.T) {
	probe := newTestProbe(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, metricsBody())
	})

	status, err := probe.Check(context.Background(), "p1@example.org")
	require.NoError(t, err)
	assert.True(t, status.Stale)
	assert.Nil(t, status.LastSeen)
}

func TestCheckQueriesTodayAndYesterday(t *testing.T) {
	var dates []string
	probe := newTestProbe(t, func(w http.ResponseWriter, r *http.Request) {
		dates = append(dates, r.URL.Query().Get("date"))
		fmt.Fprint(w, metricsBody(testNow.Add(-time.Hour).Unix()))
	})

	_, err := probe.Check(context.Background(), "p1@example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{"07/08/2025", "06/08/2025"}, dates)
}

func TestCheckAllRequestsFailing(t *testing.T) {
	probe := newTestProbe(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	_, err := probe.Check(context.Background(), "p1@example.org")
	assert.Error(t, err)
}
