package randomize

import (
	"testing"

	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// seqRand returns preset values in order.
type seqRand struct {
	vals []int
	i    int
}

func (s *seqRand) Intn(int) int {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func f(v float64) *float64 { return &v }

func TestUniformPolicyDrawsFromArmSet(t *testing.T) {
	rng := &seqRand{vals: []int{0, 1, 2, 1}}
	pol, err := NewUniformPolicy(DefaultUniformArms, rng)
	if err != nil {
		t.Fatal(err)
	}

	want := []model.Arm{model.ArmContext, model.ArmControl, model.ArmSingle, model.ArmControl}
	for i, w := range want {
		if got := pol.Assign(model.Participant{}, nil); got != w {
			t.Errorf("draw %d: got %s, want %s", i, got, w)
		}
	}
}

func TestUniformPolicyRejectsEmptyArms(t *testing.T) {
	if _, err := NewUniformPolicy(nil, &seqRand{vals: []int{0}}); err == nil {
		t.Fatal("expected error for empty arm set")
	}
}

func TestContextPolicyClassification(t *testing.T) {
	midday, err := NewContextPolicy(DaypartMidday)
	if err != nil {
		t.Fatal(err)
	}
	evening, err := NewContextPolicy(DaypartEvening)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		pol     *ContextPolicy
		signals model.SignalSet
		want    model.Arm
	}{
		{"both absent", midday, model.SignalSet{}, model.ArmContextMissing},
		{"both explicit null", midday,
			model.SignalSet{model.SignalSteps: nil, model.SignalSleep: nil}, model.ArmContextMissing},
		{"non-positive counts as absent", midday,
			model.SignalSet{model.SignalSteps: f(0), model.SignalSleep: f(-1)}, model.ArmContextMissing},

		{"steps only, above midday threshold", midday,
			model.SignalSet{model.SignalSteps: f(3000)}, model.ArmContextPos},
		{"steps only, below midday threshold", midday,
			model.SignalSet{model.SignalSteps: f(2000)}, model.ArmContextNeg},
		{"steps only, midday boundary", midday,
			model.SignalSet{model.SignalSteps: f(2500)}, model.ArmContextPos},
		{"steps only, evening threshold", evening,
			model.SignalSet{model.SignalSteps: f(3000)}, model.ArmContextNeg},
		{"steps only, evening high", evening,
			model.SignalSet{model.SignalSteps: f(5000)}, model.ArmContextPos},

		{"sleep only, in range", midday,
			model.SignalSet{model.SignalSleep: f(7.5)}, model.ArmContextPos},
		{"sleep only, short", midday,
			model.SignalSet{model.SignalSleep: f(5)}, model.ArmContextNeg},
		{"sleep only, long", midday,
			model.SignalSet{model.SignalSleep: f(10)}, model.ArmContextNeg},

		{"both present, all high", midday,
			model.SignalSet{model.SignalSteps: f(4000), model.SignalSleep: f(8)}, model.ArmContextPos},
		{"high steps, low sleep is the only negative composite", midday,
			model.SignalSet{model.SignalSteps: f(4000), model.SignalSleep: f(5)}, model.ArmContextNeg},
		// Intentional asymmetry: low steps with in-range sleep stays positive.
		{"low steps, good sleep", midday,
			model.SignalSet{model.SignalSteps: f(1000), model.SignalSleep: f(7.5)}, model.ArmContextPos},
		{"both low", midday,
			model.SignalSet{model.SignalSteps: f(1000), model.SignalSleep: f(5)}, model.ArmContextPos},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.pol.Assign(model.Participant{ID: "p1"}, c.signals); got != c.want {
				t.Errorf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestNewContextPolicyRejectsUnknownDaypart(t *testing.T) {
	if _, err := NewContextPolicy("brunch"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAssignmentsCoversEveryParticipant(t *testing.T) {
	pol, _ := NewUniformPolicy([]model.Arm{model.ArmControl}, &seqRand{vals: []int{0}})
	participants := map[string]model.Participant{
		"p1": {ID: "p1"},
		"p2": {ID: "p2"},
	}
	got := Assignments(pol, participants, map[string]model.SignalSet{})
	if len(got) != 2 || got["p1"] != model.ArmControl || got["p2"] != model.ArmControl {
		t.Fatalf("got %v", got)
	}
}
