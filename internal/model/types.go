package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is assumed whenever a participant record carries no
// usable IANA zone name.
const DefaultTimezone = "Europe/Zurich"

// MealtimePrefix marks the participant custom fields that hold
// day-of-week-qualified meal window start times (e.g. "mealtime_mon_breakfast").
const MealtimePrefix = "mealtime_"

// SyncSlot is the reserved slot id used for sync-reminder schedule entries.
const SyncSlot = "sync"

// Platform identifies the health-data source a participant is enrolled with.
type Platform string

const (
	PlatformIOS           Platform = "iOS"
	PlatformAndroid       Platform = "Android"
	PlatformFitbit        Platform = "Fitbit"
	PlatformHealthConnect Platform = "HealthConnect"
)

// Arm is the experimental condition assigned to a participant for one
// decision point. "context" is provisional and is resolved to dual_high or
// dual_low at scheduling time.
type Arm string

const (
	ArmControl        Arm = "control"
	ArmContext        Arm = "context"
	ArmSingle         Arm = "single"
	ArmDualHigh       Arm = "dual_high"
	ArmDualLow        Arm = "dual_low"
	ArmContextPos     Arm = "context_pos"
	ArmContextNeg     Arm = "context_neg"
	ArmContextMissing Arm = "context_missing"
	ArmSyncReminder   Arm = "sync_reminder"
)

// Participant is the read-only directory record the trial logic operates on.
type Participant struct {
	ID           string            `json:"participantIdentifier"`
	Platform     Platform          `json:"platform"`
	Timezone     string            `json:"timezone"`
	CustomFields map[string]string `json:"customFields"`
}

// Location resolves the participant's IANA timezone, falling back to
// DefaultTimezone when the name is empty or unknown.
func (p Participant) Location() *time.Location {
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			return loc
		}
	}
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Field returns the named custom field with surrounding whitespace removed.
func (p Participant) Field(name string) (string, bool) {
	v, ok := p.CustomFields[name]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Signal names used by the randomisation policies.
const (
	SignalSteps = "total_steps"
	SignalSleep = "total_sleep_hours"
)

// SignalSet maps signal name to value. A nil value is an explicit null
// (the provider was queried but produced nothing); a missing key means the
// signal was never collected. Both count as absent for classification.
type SignalSet map[string]*float64

// Value returns the signal value and whether it is present (non-nil).
func (s SignalSet) Value(name string) (float64, bool) {
	v, ok := s[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// ScheduleKey builds the composite key "participantId::slotId" used by both
// the schedule and sent logs.
func ScheduleKey(participantID, slotID string) string {
	return participantID + "::" + slotID
}

// SplitScheduleKey is the inverse of ScheduleKey.
func SplitScheduleKey(key string) (participantID, slotID string, err error) {
	parts := strings.SplitN(key, "::", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed schedule key %q", key)
	}
	return parts[0], parts[1], nil
}

// ScheduleRecord is one planned notification. Once a key exists in the
// schedule log the record is never overwritten or deleted.
type ScheduleRecord struct {
	ParticipantID string    `json:"participant_id"`
	SlotID        string    `json:"slot_id"`
	Arm           Arm       `json:"arm"`
	MessageID     string    `json:"message_id"`
	SendTime      time.Time `json:"send_time"`

	// Raw signal totals captured at scheduling time, kept for audit only.
	TotalSteps *float64 `json:"total_steps,omitempty"`
	TotalSleep *float64 `json:"total_sleep_hours,omitempty"`
}

// Key returns the composite log key for the record.
func (r ScheduleRecord) Key() string {
	return ScheduleKey(r.ParticipantID, r.SlotID)
}

// SentRecord is the terminal outcome for a schedule key. Presence in the
// sent log means the key is done, whether the message went out or the send
// was skipped because the participant had already completed the task.
type SentRecord struct {
	ParticipantID  string     `json:"participant_id"`
	SlotID         string     `json:"slot_id"`
	Arm            Arm        `json:"arm"`
	MessageID      string     `json:"message_id"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	ActualSendTime *time.Time `json:"actual_send_time"`
	Skipped        bool       `json:"skipped_due_to_completion"`
}

// Key returns the composite log key for the record.
func (r SentRecord) Key() string {
	return ScheduleKey(r.ParticipantID, r.SlotID)
}
