// Package randomize assigns participants to experimental arms at each
// decision point.
package randomize

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// Rand is the source of randomness a policy draws from. Tests inject a
// deterministic implementation.
type Rand interface {
	Intn(n int) int
}

// NewRand returns a time-seeded source for production use.
func NewRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Policy maps a participant and their current signals to an arm. Which
// policy runs is a deployment choice, not a compile-time one.
type Policy interface {
	Assign(p model.Participant, signals model.SignalSet) model.Arm
}

// Assignments runs the policy over every participant context and returns
// participant id -> arm. Arms are drawn independently per participant.
func Assignments(policy Policy, participants map[string]model.Participant, signals map[string]model.SignalSet) map[string]model.Arm {
	out := make(map[string]model.Arm, len(participants))
	for pid, p := range participants {
		out[pid] = policy.Assign(p, signals[pid])
	}
	return out
}

// UniformPolicy draws uniformly from a fixed arm set regardless of signal
// availability.
type UniformPolicy struct {
	arms []model.Arm
	rng  Rand
}

// DefaultUniformArms is the trial's base arm set.
var DefaultUniformArms = []model.Arm{model.ArmContext, model.ArmControl, model.ArmSingle}

// NewUniformPolicy builds a uniform policy over the given arms.
func NewUniformPolicy(arms []model.Arm, rng Rand) (*UniformPolicy, error) {
	if len(arms) == 0 {
		return nil, fmt.Errorf("uniform policy needs at least one arm")
	}
	return &UniformPolicy{arms: arms, rng: rng}, nil
}

// Assign draws one arm.
func (u *UniformPolicy) Assign(model.Participant, model.SignalSet) model.Arm {
	return u.arms[u.rng.Intn(len(u.arms))]
}
