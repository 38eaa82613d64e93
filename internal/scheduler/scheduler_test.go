package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthlab-css/glowup-mrt/internal/blob"
	"github.com/healthlab-css/glowup-mrt/internal/journal"
	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// seqRand returns preset values in order, wrapping around.
type seqRand struct {
	vals []int
	i    int
}

func (s *seqRand) Intn(n int) int {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	if v >= n {
		v = n - 1
	}
	return v
}

var testNow = time.Date(2025, 8, 7, 13, 30, 0, 0, time.UTC)

func newTestScheduler(store blob.ObjectStore, rng *seqRand) *Scheduler {
	j := journal.NewAt(store, func() time.Time { return testNow })
	return NewAt(j, DefaultBank(), rng, func() time.Time { return testNow }, zerolog.Nop())
}

func lunchParticipant(fields map[string]string) *Context {
	cf := map[string]string{"mealtime_thu_lunch": "01:00 PM"}
	for k, v := range fields {
		cf[k] = v
	}
	return &Context{
		Participant: model.Participant{ID: "p1", Timezone: "UTC", CustomFields: cf},
		ActiveSlots: []string{"mealtime_thu_lunch"},
	}
}

func TestScheduleWritesRecord(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemStore()
	s := newTestScheduler(store, &seqRand{vals: []int{0}})

	steps := 4200.0
	pc := lunchParticipant(nil)
	pc.Signals = model.SignalSet{model.SignalSteps: &steps}

	err := s.Schedule(ctx, map[string]model.Arm{"p1": model.ArmControl}, map[string]*Context{"p1": pc})
	require.NoError(t, err)

	sched, err := s.journal.LoadSchedule(ctx)
	require.NoError(t, err)
	require.Len(t, sched, 1)

	rec := sched["p1::mealtime_thu_lunch"]
	assert.Equal(t, model.ArmControl, rec.Arm)
	assert.Equal(t, "control_00", rec.MessageID)
	// rng offset 0: send at the lower bound, which is "now" (window started 13:00).
	assert.Equal(t, testNow, rec.SendTime)
	require.NotNil(t, rec.TotalSteps)
	assert.Equal(t, 4200.0, *rec.TotalSteps)
	assert.Nil(t, rec.TotalSleep)
}

func TestScheduleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemStore()

	assignments := map[string]model.Arm{"p1": model.ArmControl}
	contexts := map[string]*Context{"p1": lunchParticipant(nil)}

	s1 := newTestScheduler(store, &seqRand{vals: []int{7}})
	require.NoError(t, s1.Schedule(ctx, assignments, contexts))
	first, err := s1.journal.LoadSchedule(ctx)
	require.NoError(t, err)

	// Second pass with a different random source: nothing may change.
	s2 := newTestScheduler(store, &seqRand{vals: []int{99}})
	require.NoError(t, s2.Schedule(ctx, assignments, contexts))
	second, err := s2.journal.LoadSchedule(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScheduleSendTimeWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemStore()
	// Large rng value clamps to the top of the range in seqRand.
	s := newTestScheduler(store, &seqRand{vals: []int{1 << 30}})

	require.NoError(t, s.Schedule(ctx,
		map[string]model.Arm{"p1": model.ArmSingle},
		map[string]*Context{"p1": lunchParticipant(nil)}))

	sched, _ := s.journal.LoadSchedule(ctx)
	rec := sched["p1::mealtime_thu_lunch"]

	windowEnd := time.Date(2025, 8, 7, 15, 0, 0, 0, time.UTC)
	assert.False(t, rec.SendTime.Before(testNow), "send time before now")
	assert.False(t, rec.SendTime.After(windowEnd), "send time after window end")
}

func TestScheduleSkipsPassedWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(blob.NewMemStore(), &seqRand{vals: []int{0}})

	pc := lunchParticipant(map[string]string{"mealtime_thu_breakfast": "07:00 AM"})
	pc.ActiveSlots = []string{"mealtime_thu_breakfast"} // window ended 09:00, now 13:30

	require.NoError(t, s.Schedule(ctx, map[string]model.Arm{"p1": model.ArmControl}, map[string]*Context{"p1": pc}))

	sched, _ := s.journal.LoadSchedule(ctx)
	assert.Empty(t, sched)
}

func TestScheduleSkipsMissingSlotValueAndEmptyBank(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(blob.NewMemStore(), &seqRand{vals: []int{0}})

	// Slot id with no matching custom field.
	pc := lunchParticipant(nil)
	pc.ActiveSlots = []string{"mealtime_thu_dinner"}
	require.NoError(t, s.Schedule(ctx, map[string]model.Arm{"p1": model.ArmControl}, map[string]*Context{"p1": pc}))
	sched, _ := s.journal.LoadSchedule(ctx)
	assert.Empty(t, sched)

	// Arm with no bank entries: context_missing is never deliverable.
	pc = lunchParticipant(nil)
	require.NoError(t, s.Schedule(ctx, map[string]model.Arm{"p1": model.ArmContextMissing}, map[string]*Context{"p1": pc}))
	sched, _ = s.journal.LoadSchedule(ctx)
	assert.Empty(t, sched)
}

func TestScheduleResolvesProvisionalContextArm(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		tracked  string
		surveyed string
		want     model.Arm
	}{
		{"ratio 75 exactly is high", "3", "4", model.ArmDualHigh},
		{"ratio 50 is low", "2", "4", model.ArmDualLow},
		{"zero delivered treated as one", "1", "0", model.ArmDualHigh},
		{"missing counters default low", "", "", model.ArmDualLow},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := newTestScheduler(blob.NewMemStore(), &seqRand{vals: []int{0}})
			fields := map[string]string{}
			if c.tracked != "" {
				fields["TrackingCount"] = c.tracked
			}
			if c.surveyed != "" {
				fields["SurveysDelivered"] = c.surveyed
			}
			pc := lunchParticipant(fields)

			require.NoError(t, s.Schedule(ctx, map[string]model.Arm{"p1": model.ArmContext}, map[string]*Context{"p1": pc}))
			sched, _ := s.journal.LoadSchedule(ctx)
			require.Len(t, sched, 1)
			assert.Equal(t, c.want, sched["p1::mealtime_thu_lunch"].Arm)
		})
	}
}

func TestScheduleMultipleActiveSlots(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(blob.NewMemStore(), &seqRand{vals: []int{0}})

	pc := lunchParticipant(map[string]string{"mealtime_thu_snack": "12:00 PM"})
	pc.ActiveSlots = []string{"mealtime_thu_lunch", "mealtime_thu_snack"}

	require.NoError(t, s.Schedule(ctx, map[string]model.Arm{"p1": model.ArmControl}, map[string]*Context{"p1": pc}))

	sched, _ := s.journal.LoadSchedule(ctx)
	assert.Len(t, sched, 2)
	assert.Contains(t, sched, "p1::mealtime_thu_lunch")
	assert.Contains(t, sched, "p1::mealtime_thu_snack")
}

func TestTrackingRatio(t *testing.T) {
	p := func(tc, sd string) model.Participant {
		return model.Participant{CustomFields: map[string]string{"TrackingCount": tc, "SurveysDelivered": sd}}
	}
	assert.InDelta(t, 75.0, TrackingRatio(p("3", "4")), 0.001)
	assert.InDelta(t, 50.0, TrackingRatio(p("2", "4")), 0.001)
	assert.InDelta(t, 300.0, TrackingRatio(p("3", "0")), 0.001)
	assert.InDelta(t, 0.0, TrackingRatio(model.Participant{}), 0.001)
}
