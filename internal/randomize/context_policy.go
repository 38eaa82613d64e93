package randomize

import (
	"fmt"

	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// Daypart tags the decision point the context policy is classifying for;
// the step threshold differs between the midday and evening points.
type Daypart string

const (
	DaypartMidday  Daypart = "midday"
	DaypartEvening Daypart = "evening"
)

const (
	middayStepThreshold  = 2500
	eveningStepThreshold = 5000
	sleepHoursMin        = 6.5
	sleepHoursMax        = 9
)

// ContextPolicy classifies participants into context_pos / context_neg /
// context_missing from their step and sleep signals.
//
// When both signals are present the only negative combination is high steps
// with sleep outside the healthy range; high sleep with low steps still
// classifies positive. That asymmetry matches the running trial and is kept
// on purpose pending product confirmation, so do not "fix" it here.
type ContextPolicy struct {
	stepThreshold float64
}

// NewContextPolicy builds the classification policy for a daypart.
func NewContextPolicy(daypart Daypart) (*ContextPolicy, error) {
	switch daypart {
	case DaypartMidday:
		return &ContextPolicy{stepThreshold: middayStepThreshold}, nil
	case DaypartEvening:
		return &ContextPolicy{stepThreshold: eveningStepThreshold}, nil
	default:
		return nil, fmt.Errorf("unknown daypart %q", daypart)
	}
}

// Assign classifies one participant. A signal counts as available only when
// present and positive.
func (c *ContextPolicy) Assign(_ model.Participant, signals model.SignalSet) model.Arm {
	steps, stepsOK := signals.Value(model.SignalSteps)
	stepsOK = stepsOK && steps > 0
	sleep, sleepOK := signals.Value(model.SignalSleep)
	sleepOK = sleepOK && sleep > 0

	switch {
	case !stepsOK && !sleepOK:
		return model.ArmContextMissing
	case stepsOK && !sleepOK:
		if steps >= c.stepThreshold {
			return model.ArmContextPos
		}
		return model.ArmContextNeg
	case sleepOK && !stepsOK:
		if sleepInRange(sleep) {
			return model.ArmContextPos
		}
		return model.ArmContextNeg
	default:
		if steps >= c.stepThreshold && !sleepInRange(sleep) {
			return model.ArmContextNeg
		}
		return model.ArmContextPos
	}
}

func sleepInRange(hours float64) bool {
	return hours >= sleepHoursMin && hours <= sleepHoursMax
}
