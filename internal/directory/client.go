// Package directory reads and updates participant records in the study
// platform's administration API.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/healthlab-css/glowup-mrt/internal/auth"
	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// pageSize matches the platform's maximum; a short page ends the scan.
const pageSize = 100

// Client is a thin resty wrapper over the participants endpoints.
type Client struct {
	http      *resty.Client
	projectID string
	tokens    auth.TokenSource
}

// New builds a Client for the given API base URL and project.
func New(baseURL, projectID string, tokens auth.TokenSource) *Client {
	return &Client{
		http:      resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second),
		projectID: projectID,
		tokens:    tokens,
	}
}

// rawParticipant mirrors the API payload; only the fields the trial logic
// reads are decoded.
type rawParticipant struct {
	ParticipantIdentifier string            `json:"participantIdentifier"`
	CustomFields          map[string]string `json:"customFields"`
	Demographics          struct {
		TimeZone string `json:"timeZone"`
	} `json:"demographics"`
}

func (r rawParticipant) toModel(platform model.Platform) model.Participant {
	cf := r.CustomFields
	if cf == nil {
		cf = map[string]string{}
	}
	return model.Participant{
		ID:           r.ParticipantIdentifier,
		Platform:     platform,
		Timezone:     r.Demographics.TimeZone,
		CustomFields: cf,
	}
}

// ParticipantsBySegment pages through every participant in the segment.
// The platform tag on the returned records is the caller's, since segments
// are defined per platform.
func (c *Client) ParticipantsBySegment(ctx context.Context, segmentID string, platform model.Platform) ([]model.Participant, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.Participant
	for page := 0; ; page++ {
		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeader("Accept", "application/json").
			SetQueryParams(map[string]string{
				"segmentId":  segmentID,
				"pageNumber": strconv.Itoa(page),
				"pageSize":   strconv.Itoa(pageSize),
			}).
			Get(fmt.Sprintf("/api/v1/administration/projects/%s/participants", c.projectID))
		if err != nil {
			return nil, fmt.Errorf("directory: list segment %s: %w", segmentID, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("directory: list segment %s: status %d: %s", segmentID, resp.StatusCode(), resp.String())
		}

		var body struct {
			Participants []rawParticipant `json:"participants"`
		}
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return nil, fmt.Errorf("directory: decode page %d: %w", page, err)
		}
		for _, raw := range body.Participants {
			out = append(out, raw.toModel(platform))
		}
		if len(body.Participants) < pageSize {
			return out, nil
		}
	}
}

// Participant fetches a single record by identifier.
func (c *Client) Participant(ctx context.Context, participantID string, platform model.Platform) (model.Participant, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return model.Participant{}, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		Get(fmt.Sprintf("/api/v1/administration/projects/%s/participants/%s", c.projectID, participantID))
	if err != nil {
		return model.Participant{}, fmt.Errorf("directory: fetch %s: %w", participantID, err)
	}
	if resp.IsError() {
		return model.Participant{}, fmt.Errorf("directory: fetch %s: status %d", participantID, resp.StatusCode())
	}

	var raw rawParticipant
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return model.Participant{}, fmt.Errorf("directory: decode %s: %w", participantID, err)
	}
	return raw.toModel(platform), nil
}

// HealthPing verifies the API and the service credentials by requesting a
// single participant page.
func (c *Client) HealthPing(ctx context.Context) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{"pageNumber": "0", "pageSize": "1"}).
		Get(fmt.Sprintf("/api/v1/administration/projects/%s/participants", c.projectID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("directory: health ping: status %d", resp.StatusCode())
	}
	return nil
}

// UpdateCustomFields merges the given custom fields into the participant
// record on the platform side.
func (c *Client) UpdateCustomFields(ctx context.Context, participantID string, fields map[string]string) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"participantIdentifier": participantID,
			"customFields":          fields,
		}).
		Put(fmt.Sprintf("/api/v1/administration/projects/%s/participants", c.projectID))
	if err != nil {
		return fmt.Errorf("directory: update %s: %w", participantID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("directory: update %s: status %d: %s", participantID, resp.StatusCode(), resp.String())
	}
	return nil
}
