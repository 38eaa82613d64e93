// Package tasks queries the platform's survey tasks: whether a participant
// still has today's meal log open (the dispatcher's completion check) and
// which logs were completed today (tracking-count maintenance).
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/auth"
)

// mealSurveys maps the meal part of a slot id to the survey it unlocks.
var mealSurveys = map[string]string{
	"breakfast": "log_breakfast_de",
	"lunch":     "log_lunch_de",
	"dinner":    "log_dinner_de",
}

type surveyTask struct {
	ParticipantIdentifier string `json:"participantIdentifier"`
	SurveyName            string `json:"surveyName"`
	Status                string `json:"status"`
	InsertedDate          string `json:"insertedDate"`
	EndDate               string `json:"endDate"`
}

// Client reads survey tasks from the administration API.
type Client struct {
	http      *resty.Client
	projectID string
	tokens    auth.TokenSource
	now       func() time.Time
	log       zerolog.Logger
}

// New builds a Client.
func New(baseURL, projectID string, tokens auth.TokenSource, log zerolog.Logger) *Client {
	return &Client{
		http:      resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second),
		projectID: projectID,
		tokens:    tokens,
		now:       time.Now,
		log:       log,
	}
}

func (c *Client) surveyTasks(ctx context.Context, params map[string]string) ([]surveyTask, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(fmt.Sprintf("/api/v1/administration/projects/%s/surveytasks", c.projectID))
	if err != nil {
		return nil, fmt.Errorf("tasks: fetch: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tasks: fetch: status %d", resp.StatusCode())
	}
	var body struct {
		SurveyTasks []surveyTask `json:"surveyTasks"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("tasks: decode: %w", err)
	}
	return body.SurveyTasks, nil
}

// surveyForSlot resolves a slot id like "mealtime_mon_breakfast" to its
// survey name. The meal is the last underscore-separated part.
func surveyForSlot(slot string) (string, bool) {
	meal := slot
	if strings.HasPrefix(slot, "mealtime_") {
		parts := strings.Split(slot, "_")
		meal = parts[len(parts)-1]
	}
	name, ok := mealSurveys[meal]
	return name, ok
}

// HasIncompleteTaskToday reports whether the participant's meal-log survey
// for the slot is still open today. Every uncertainty errs toward sending:
// unknown slot types and API failures return true.
func (c *Client) HasIncompleteTaskToday(ctx context.Context, participantID, slot string) bool {
	surveyName, ok := surveyForSlot(slot)
	if !ok {
		c.log.Warn().Str("participant", participantID).Str("slot", slot).
			Msg("unknown slot type for completion check, treating as incomplete")
		return true
	}

	all, err := c.surveyTasks(ctx, map[string]string{
		"pageSize":              "100",
		"participantIdentifier": participantID,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("participant", participantID).
			Msg("completion check failed, treating as incomplete")
		return true
	}

	today := c.now().UTC()
	found := false
	for _, task := range all {
		if task.SurveyName != surveyName {
			continue
		}
		inserted, err := time.Parse(time.RFC3339, task.InsertedDate)
		if err != nil || !sameUTCDay(inserted, today) {
			continue
		}
		found = true
		if strings.EqualFold(task.Status, "incomplete") {
			return true
		}
	}
	if !found {
		c.log.Debug().Str("participant", participantID).Str("survey", surveyName).
			Msg("no survey task found today")
	}
	return false
}

func sameUTCDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
