package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// signalLookback bounds the device-data query to the last day.
const signalLookback = 24 * time.Hour

// DeviceDataAPI reads device data points from the study platform. All
// platform providers share it; only the namespace and type filters differ.
type DeviceDataAPI struct {
	http      *resty.Client
	projectID string
	now       func() time.Time
}

// NewDeviceDataAPI builds the shared API client.
func NewDeviceDataAPI(baseURL, projectID string) *DeviceDataAPI {
	return &DeviceDataAPI{
		http:      resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second),
		projectID: projectID,
		now:       time.Now,
	}
}

// fetchDataPoints is the single request builder behind every provider.
// typeFilter may be empty to fetch all types in the namespace.
func fetchDataPoints(ctx context.Context, api *DeviceDataAPI, token, participantID, namespace, typeFilter string) ([]DataPoint, error) {
	observedAfter := api.now().UTC().Add(-signalLookback).Format(time.RFC3339)

	params := map[string]string{
		"namespace":             namespace,
		"participantIdentifier": participantID,
		"observedAfter":         observedAfter,
	}
	if typeFilter != "" {
		params["type"] = typeFilter
	}

	resp, err := api.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(fmt.Sprintf("/api/v1/administration/projects/%s/devicedatapoints", api.projectID))
	if err != nil {
		return nil, fmt.Errorf("device data %s/%s: %w", namespace, participantID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("device data %s/%s: status %d", namespace, participantID, resp.StatusCode())
	}

	var body struct {
		DeviceDataPoints []DataPoint `json:"deviceDataPoints"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("device data %s/%s: decode: %w", namespace, participantID, err)
	}
	return body.DeviceDataPoints, nil
}

// parsePointTime accepts the platform's ISO timestamps.
func parsePointTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// onLocalDay reports whether ts falls on "today" in loc, relative to ref.
func onLocalDay(ts, ref time.Time, loc *time.Location) bool {
	a := ts.In(loc)
	b := ref.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// parseStepValue tolerates both integer and decimal step counts.
func parseStepValue(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("step value %q: %w", raw, err)
	}
	return v, nil
}

// sourceName extracts the reporting source, defaulting when absent so
// unattributed points still aggregate.
func sourceName(dp DataPoint) string {
	if name, ok := dp.Source.Properties["SourceName"]; ok && name != "" {
		return name
	}
	return "Unknown Source"
}
