package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/blob"
	"github.com/healthlab-css/glowup-mrt/internal/config"
	"github.com/healthlab-css/glowup-mrt/internal/factory"
	"github.com/healthlab-css/glowup-mrt/internal/journal"
	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// filterByParticipant keeps only the entries whose composite key belongs to
// the participant; malformed keys are dropped from a filtered view.
func filterByParticipant[T any](m map[string]T, participantID string) map[string]T {
	if participantID == "" {
		return m
	}
	out := map[string]T{}
	for key, v := range m {
		pid, _, err := model.SplitScheduleKey(key)
		if err != nil {
			continue
		}
		if pid == participantID {
			out[key] = v
		}
	}
	return out
}

func openStore() (blob.ObjectStore, *config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	store, err := factory.NewObjectStore(cfg, zerolog.Nop())
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func runLogs(ctx context.Context, which, participantID string, out io.Writer) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	j := journal.New(store)

	var payload interface{}
	switch which {
	case "schedule":
		var m map[string]model.ScheduleRecord
		if m, err = j.LoadSchedule(ctx); err == nil {
			payload = filterByParticipant(m, participantID)
		}
	case "sent":
		var m map[string]model.SentRecord
		if m, err = j.LoadSent(ctx); err == nil {
			payload = filterByParticipant(m, participantID)
		}
	default:
		return fmt.Errorf("unknown log %q", which)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
