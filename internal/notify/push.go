// Package notify delivers push notifications through the study platform.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/healthlab-css/glowup-mrt/internal/auth"
)

// PushClient sends notifications via the administration API. It satisfies
// dispatch.Transport.
type PushClient struct {
	http      *resty.Client
	projectID string
	tokens    auth.TokenSource
}

// NewPushClient builds a PushClient for the given API base URL and project.
func NewPushClient(baseURL, projectID string, tokens auth.TokenSource) *PushClient {
	return &PushClient{
		http:      resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second),
		projectID: projectID,
		tokens:    tokens,
	}
}

// Send triggers the pre-configured notification identified by messageID for
// the participant. The platform resolves the identifier to localized content
// and the participant's registered devices.
func (c *PushClient) Send(ctx context.Context, participantID, messageID string) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody([]map[string]string{{
			"participantIdentifier":  participantID,
			"notificationIdentifier": messageID,
		}}).
		Post(fmt.Sprintf("/api/v1/administration/projects/%s/notifications", c.projectID))
	if err != nil {
		return fmt.Errorf("notify: send %s to %s: %w", messageID, participantID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: send %s to %s: status %d: %s", messageID, participantID, resp.StatusCode(), resp.String())
	}
	return nil
}
