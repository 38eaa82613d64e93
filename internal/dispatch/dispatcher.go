// Package dispatch delivers due schedule records. The sent log is the
// dedup ledger: once a key appears there the dispatcher never touches it
// again, so delivery is at-least-once against transport failures and
// at-most-once against everything that has ever been acknowledged.
package dispatch

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/journal"
	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// Transport pushes one notification to one participant. Idempotency is the
// dispatcher's responsibility, not the transport's.
type Transport interface {
	Send(ctx context.Context, participantID, messageID string) error
}

// CompletionChecker answers whether the participant still has the slot's
// related task open today. When it reports the task as done the
// notification is skipped for good.
type CompletionChecker interface {
	HasIncompleteTaskToday(ctx context.Context, participantID, slotID string) bool
}

// Summary is the aggregate outcome of one dispatch pass.
type Summary struct {
	Total       int
	AlreadySent int
	Future      int
	SentNow     int
	Skipped     int
}

// Dispatcher scans the schedule log and sends whatever is due.
type Dispatcher struct {
	journal   *journal.Journal
	transport Transport
	checker   CompletionChecker // nil disables the completion check
	now       func() time.Time
	log       zerolog.Logger
}

// New builds a Dispatcher on the real clock. checker may be nil.
func New(j *journal.Journal, transport Transport, checker CompletionChecker, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{journal: j, transport: transport, checker: checker, now: time.Now, log: log}
}

// NewAt is New with an injected clock.
func NewAt(j *journal.Journal, transport Transport, checker CompletionChecker, now func() time.Time, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{journal: j, transport: transport, checker: checker, now: now, log: log}
}

// Dispatch runs one delivery pass over today's schedule log. Transport
// failures leave the key out of the sent log so the next pass retries it;
// the sent log is persisted once at the end either way.
func (d *Dispatcher) Dispatch(ctx context.Context) (Summary, error) {
	sched, err := d.journal.LoadSchedule(ctx)
	if err != nil {
		return Summary{}, err
	}
	sent, err := d.journal.LoadSent(ctx)
	if err != nil {
		return Summary{}, err
	}
	nowUTC := d.now().UTC()

	sum := Summary{Total: len(sched)}
	if sum.Total == 0 {
		d.log.Info().Msg("no notifications scheduled for today")
		return sum, nil
	}

	for _, key := range sortedKeys(sched) {
		rec := sched[key]
		log := d.log.With().Str("key", key).Logger()

		if _, done := sent[key]; done {
			sum.AlreadySent++
			continue
		}
		if rec.SendTime.After(nowUTC) {
			sum.Future++
			continue
		}

		if d.checker != nil && !d.checker.HasIncompleteTaskToday(ctx, rec.ParticipantID, rec.SlotID) {
			log.Info().Msg("task already completed today, skipping notification")
			sent[key] = model.SentRecord{
				ParticipantID: rec.ParticipantID,
				SlotID:        rec.SlotID,
				Arm:           rec.Arm,
				MessageID:     rec.MessageID,
				ScheduledTime: rec.SendTime,
				Skipped:       true,
			}
			sum.Skipped++
			continue
		}

		if err := d.transport.Send(ctx, rec.ParticipantID, rec.MessageID); err != nil {
			// Left out of the sent log on purpose: retried next pass.
			log.Error().Err(err).Msg("send failed")
			continue
		}

		actual := nowUTC
		sent[key] = model.SentRecord{
			ParticipantID:  rec.ParticipantID,
			SlotID:         rec.SlotID,
			Arm:            rec.Arm,
			MessageID:      rec.MessageID,
			ScheduledTime:  rec.SendTime,
			ActualSendTime: &actual,
		}
		sum.SentNow++
		log.Info().Str("message_id", rec.MessageID).Str("arm", string(rec.Arm)).Msg("sent")
	}

	if err := d.journal.SaveSent(ctx, sent); err != nil {
		return sum, err
	}

	d.logSummary(sum)
	return sum, nil
}

func (d *Dispatcher) logSummary(sum Summary) {
	ev := d.log.Info().
		Int("total", sum.Total).
		Int("already_sent", sum.AlreadySent).
		Int("future", sum.Future).
		Int("sent_now", sum.SentNow).
		Int("skipped", sum.Skipped)

	switch {
	case sum.SentNow > 0:
		ev.Msg("dispatch pass complete")
	case sum.AlreadySent == sum.Total:
		ev.Msg("all notifications already sent")
	case sum.Future == sum.Total:
		ev.Msg("all scheduled notifications are for the future")
	default:
		ev.Msg("no eligible notifications at this time")
	}
}

func sortedKeys(m map[string]model.ScheduleRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
