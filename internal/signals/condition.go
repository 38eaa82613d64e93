package signals

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// Op is one of the closed set of comparison operators allowed in reminder
// conditions. Conditions are data, never executable code.
type Op string

const (
	OpLT     Op = "<"
	OpLE     Op = "<="
	OpGT     Op = ">"
	OpGE     Op = ">="
	OpEQ     Op = "=="
	OpAbsent Op = "absent"
)

// Condition is one rule over a named signal. OpAbsent ignores Value.
type Condition struct {
	Signal string
	Op     Op
	Value  float64
}

// ParseOp validates an operator string from configuration.
func ParseOp(s string) (Op, error) {
	switch Op(s) {
	case OpLT, OpLE, OpGT, OpGE, OpEQ, OpAbsent:
		return Op(s), nil
	default:
		return "", fmt.Errorf("unknown condition operator %q", s)
	}
}

// ParseCondition reads one rule in "signal op value" form, e.g.
// "total_steps < 1000". OpAbsent takes no value: "total_steps absent".
func ParseCondition(s string) (Condition, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return Condition{}, fmt.Errorf("condition %q needs a signal and an operator", s)
	}
	op, err := ParseOp(fields[1])
	if err != nil {
		return Condition{}, fmt.Errorf("condition %q: %w", s, err)
	}
	cond := Condition{Signal: fields[0], Op: op}
	if op == OpAbsent {
		if len(fields) != 2 {
			return Condition{}, fmt.Errorf("condition %q: absent takes no value", s)
		}
		return cond, nil
	}
	if len(fields) != 3 {
		return Condition{}, fmt.Errorf("condition %q: comparison needs a value", s)
	}
	cond.Value, err = strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Condition{}, fmt.Errorf("condition %q: bad value: %w", s, err)
	}
	return cond, nil
}

// ParseConditions reads a comma-separated rule list. An empty string means
// no rules.
func ParseConditions(s string) ([]Condition, error) {
	var out []Condition
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cond, err := ParseCondition(part)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

// Eval reports whether the condition holds for the signal set. Comparison
// operators on an absent signal are false; only OpAbsent matches absence.
func (c Condition) Eval(signals model.SignalSet) bool {
	v, ok := signals.Value(c.Signal)
	if c.Op == OpAbsent {
		return !ok
	}
	if !ok {
		return false
	}
	switch c.Op {
	case OpLT:
		return v < c.Value
	case OpLE:
		return v <= c.Value
	case OpGT:
		return v > c.Value
	case OpGE:
		return v >= c.Value
	case OpEQ:
		return v == c.Value
	default:
		return false
	}
}

// AnyCondition reports whether at least one condition holds; an empty rule
// list never triggers.
func AnyCondition(conditions []Condition, signals model.SignalSet) bool {
	for _, c := range conditions {
		if c.Eval(signals) {
			return true
		}
	}
	return false
}
