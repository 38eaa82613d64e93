package tasks

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/blob"
	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// TrackingField is the custom field counting completed meal logs.
const TrackingField = "TrackingCount"

// participantUpdater is the subset of the directory client the tracker needs.
type participantUpdater interface {
	Participant(ctx context.Context, participantID string, platform model.Platform) (model.Participant, error)
	UpdateCustomFields(ctx context.Context, participantID string, fields map[string]string) error
}

type trackingEntry struct {
	ParticipantID string    `json:"participant_id"`
	SurveyName    string    `json:"survey_name"`
	CountedAt     time.Time `json:"counted_at"`
	NewCount      int       `json:"new_tracking_count"`
}

// Tracker bumps each participant's tracking count when a meal log completes.
// A dated blob keyed by participant and survey keeps repeated runs from
// counting the same completion twice.
type Tracker struct {
	tasks     *Client
	directory participantUpdater
	store     blob.ObjectStore
	now       func() time.Time
	log       zerolog.Logger
}

// NewTracker builds a Tracker.
func NewTracker(tasks *Client, directory participantUpdater, store blob.ObjectStore, log zerolog.Logger) *Tracker {
	return &Tracker{tasks: tasks, directory: directory, store: store, now: time.Now, log: log}
}

func (t *Tracker) journalKey() string {
	return "logs/tracking_" + t.now().UTC().Format("2006-01-02") + ".json"
}

func (t *Tracker) loadJournal(ctx context.Context) (map[string]trackingEntry, error) {
	data, err := t.store.Get(ctx, t.journalKey())
	if errors.Is(err, blob.ErrNotFound) {
		return map[string]trackingEntry{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load tracking journal")
	}
	var out map[string]trackingEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "decode tracking journal")
	}
	return out, nil
}

// IncrementCompleted scans today's completed meal-log tasks and increments
// TrackingCount once per participant and survey. Per-participant failures
// are logged and skipped so one bad record does not stall the rest.
func (t *Tracker) IncrementCompleted(ctx context.Context) error {
	all, err := t.tasks.surveyTasks(ctx, map[string]string{
		"pageSize": "200",
		"status":   "complete",
	})
	if err != nil {
		return err
	}

	journal, err := t.loadJournal(ctx)
	if err != nil {
		return err
	}

	mealSurvey := map[string]bool{}
	for _, name := range mealSurveys {
		mealSurvey[name] = true
	}

	today := t.now().UTC()
	dirty := false
	for _, task := range all {
		if !mealSurvey[task.SurveyName] {
			continue
		}
		// The status query param is advisory; never trust the server to
		// have applied the filter.
		if !strings.EqualFold(task.Status, "complete") {
			continue
		}
		ended, err := time.Parse(time.RFC3339, task.EndDate)
		if err != nil || !sameUTCDay(ended, today) {
			continue
		}
		key := task.ParticipantIdentifier + "::" + task.SurveyName
		if _, seen := journal[key]; seen {
			continue
		}

		count, err := t.bump(ctx, task.ParticipantIdentifier)
		if err != nil {
			t.log.Warn().Err(err).Str("participant", task.ParticipantIdentifier).
				Str("survey", task.SurveyName).Msg("tracking count increment failed")
			continue
		}
		journal[key] = trackingEntry{
			ParticipantID: task.ParticipantIdentifier,
			SurveyName:    task.SurveyName,
			CountedAt:     t.now().UTC(),
			NewCount:      count,
		}
		dirty = true
		t.log.Info().Str("participant", task.ParticipantIdentifier).
			Str("survey", task.SurveyName).Int("tracking_count", count).
			Msg("tracking count incremented")
	}

	if !dirty {
		return nil
	}
	data, err := json.Marshal(journal)
	if err != nil {
		return errors.Wrap(err, "encode tracking journal")
	}
	return errors.Wrap(t.store.Put(ctx, t.journalKey(), data), "save tracking journal")
}

func (t *Tracker) bump(ctx context.Context, participantID string) (int, error) {
	p, err := t.directory.Participant(ctx, participantID, "")
	if err != nil {
		return 0, err
	}
	count := 0
	if raw, ok := p.Field(TrackingField); ok {
		if n, err := strconv.Atoi(raw); err == nil {
			count = n
		}
	}
	count++
	err = t.directory.UpdateCustomFields(ctx, participantID, map[string]string{
		TrackingField: strconv.Itoa(count),
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
