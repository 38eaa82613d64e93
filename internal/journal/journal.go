// Package journal persists the dated notification logs as whole JSON
// objects in blob storage. Each calendar day gets its own schedule and sent
// log; old days are simply never read again.
//
// Writes are whole-object overwrites. Callers load a full mapping, mutate it
// in memory and save it back, so two invocations racing on the same day's
// log can silently lose one writer's updates. The trial runs the producers
// on a single cadence precisely to avoid that; see the lost-update test.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/healthlab-css/glowup-mrt/internal/blob"
	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// Logical log names within a day's folder.
const (
	ScheduleLog = "scheduled_log.json"
	SentLog     = "sent_log.json"
)

// Journal reads and writes the dated logs for the current UTC day.
type Journal struct {
	store blob.ObjectStore
	now   func() time.Time
}

// New returns a Journal over the given store, partitioning by the real
// UTC clock.
func New(store blob.ObjectStore) *Journal {
	return &Journal{store: store, now: time.Now}
}

// NewAt returns a Journal with an injected clock; used by tests and the
// inspection CLI.
func NewAt(store blob.ObjectStore, now func() time.Time) *Journal {
	return &Journal{store: store, now: now}
}

// Key builds the storage key for a logical log name: a month folder plus,
// when dated, a day prefix on the file name.
func (j *Journal) Key(name string, dated bool) string {
	now := j.now().UTC()
	folder := now.Format("2006_01") + "_notification_logs"
	if dated {
		name = now.Format("2006_01_02") + "_" + name
	}
	return folder + "/" + name
}

// Load reads the named log into a mapping. A missing object yields an empty
// mapping; any other storage error is fatal for the call.
func Load[T any](ctx context.Context, j *Journal, name string, dated bool) (map[string]T, error) {
	key := j.Key(name, dated)
	data, err := j.store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return map[string]T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	out := map[string]T{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return out, nil
}

// Save overwrites the named log with the full mapping.
func Save[T any](ctx context.Context, j *Journal, name string, m map[string]T, dated bool) error {
	key := j.Key(name, dated)
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := j.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// LoadSchedule returns today's schedule log keyed by "participantId::slotId".
func (j *Journal) LoadSchedule(ctx context.Context) (map[string]model.ScheduleRecord, error) {
	return Load[model.ScheduleRecord](ctx, j, ScheduleLog, true)
}

// SaveSchedule overwrites today's schedule log.
func (j *Journal) SaveSchedule(ctx context.Context, m map[string]model.ScheduleRecord) error {
	return Save(ctx, j, ScheduleLog, m, true)
}

// LoadSent returns today's sent log.
func (j *Journal) LoadSent(ctx context.Context) (map[string]model.SentRecord, error) {
	return Load[model.SentRecord](ctx, j, SentLog, true)
}

// SaveSent overwrites today's sent log.
func (j *Journal) SaveSent(ctx context.Context, m map[string]model.SentRecord) error {
	return Save(ctx, j, SentLog, m, true)
}
