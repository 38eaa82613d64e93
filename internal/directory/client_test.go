package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthlab-css/glowup-mrt/internal/auth"
	"github.com/healthlab-css/glowup-mrt/internal/model"
)

func participantJSON(i int) string {
	return fmt.Sprintf(`{
		"participantIdentifier": "MDH-%04d",
		"customFields": {"mealtime_mon_lunch": "01:00 PM"},
		"demographics": {"timeZone": "Europe/Zurich"}
	}`, i)
}

func TestParticipantsBySegmentPagesUntilShortPage(t *testing.T) {
	var pagesServed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "seg-1", r.URL.Query().Get("segmentId"))

		page := r.URL.Query().Get("pageNumber")
		pagesServed = append(pagesServed, page)

		// Page 0 is full (100 records), page 1 is short (2 records).
		n := 100
		if page == "1" {
			n = 2
		}
		var items []string
		for i := 0; i < n; i++ {
			items = append(items, participantJSON(i))
		}
		fmt.Fprintf(w, `{"participants":[%s]}`, joined(items))
	}))
	defer srv.Close()

	c := New(srv.URL, "proj-1", auth.StaticTokenSource("tok"))
	got, err := c.ParticipantsBySegment(context.Background(), "seg-1", model.PlatformIOS)
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "1"}, pagesServed)
	assert.Len(t, got, 102)
	assert.Equal(t, model.PlatformIOS, got[0].Platform)
	assert.Equal(t, "Europe/Zurich", got[0].Timezone)
	assert.Equal(t, "01:00 PM", got[0].CustomFields["mealtime_mon_lunch"])
}

func TestParticipantsBySegmentPropagatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, "proj-1", auth.StaticTokenSource("tok"))
	_, err := c.ParticipantsBySegment(context.Background(), "seg-1", model.PlatformIOS)
	assert.Error(t, err)
}

func TestUpdateCustomFields(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "proj-1", auth.StaticTokenSource("tok"))
	err := c.UpdateCustomFields(context.Background(), "MDH-0001", map[string]string{"TrackingCount": "4"})
	require.NoError(t, err)

	assert.Equal(t, "MDH-0001", gotBody["participantIdentifier"])
	fields := gotBody["customFields"].(map[string]interface{})
	assert.Equal(t, "4", fields["TrackingCount"])
}

func joined(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
