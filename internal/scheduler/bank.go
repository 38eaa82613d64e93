package scheduler

import (
	"fmt"

	"github.com/healthlab-css/glowup-mrt/internal/model"
	"github.com/healthlab-css/glowup-mrt/internal/randomize"
)

// SyncReminderMessage is the fixed notification id for sync reminders.
const SyncReminderMessage = "sync_reminder"

// Bank maps each final arm to its pool of notification ids.
type Bank map[model.Arm][]string

// Pick draws one message id for the arm. An arm with no entries is a policy
// violation and returns model.ErrEmptyBank.
func (b Bank) Pick(arm model.Arm, rng randomize.Rand) (string, error) {
	ids := b[arm]
	if len(ids) == 0 {
		return "", fmt.Errorf("%w %q", model.ErrEmptyBank, arm)
	}
	return ids[rng.Intn(len(ids))], nil
}

// DefaultBank returns the trial's German message bank: fifteen messages per
// deliverable arm.
func DefaultBank() Bank {
	numbered := func(prefix string) []string {
		ids := make([]string, 15)
		for i := range ids {
			ids[i] = fmt.Sprintf("%s_%02d", prefix, i)
		}
		return ids
	}
	return Bank{
		model.ArmControl:  numbered("control"),
		model.ArmDualHigh: numbered("context_high"),
		model.ArmDualLow:  numbered("context_low"),
		model.ArmSingle:   numbered("loss"),
	}
}
