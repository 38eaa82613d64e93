package window

import (
	"strings"
	"time"

	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// Decision-point strategies. Unknown strategies evaluate to not eligible.
const (
	StrategyFixedTime            = "fixed_time"
	StrategyRandomWindow         = "random_window"
	StrategyUserDefined          = "user_defined"
	StrategyRandomRelativeWindow = "random_relative_window"
)

// PointConfig describes one decision point. Exactly one strategy is active
// per evaluation; the other fields are ignored.
type PointConfig struct {
	Strategy string

	// fixed_time: 24h clock string, e.g. "13:30".
	Time string

	// random_window: 24h clock bounds, inclusive.
	WindowStart string
	WindowEnd   string

	// user_defined: participant custom field holding a comma-separated
	// list of allowed "HH:MM" times.
	ContextKey string

	// random_relative_window: participant custom field holding the 24h
	// base time; the window runs two hours from it.
	BaseTimeField string
}

// parseClock24 parses "15:04". Returns false on malformed input.
func parseClock24(s string) (time.Time, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsEligible reports whether nowUTC, seen in the participant's local zone,
// satisfies the decision point. Every malformed input fails closed.
func IsEligible(nowUTC time.Time, p model.Participant, cfg PointConfig) bool {
	nowLocal := nowUTC.In(p.Location())

	switch cfg.Strategy {
	case StrategyFixedTime:
		target, ok := parseClock24(cfg.Time)
		if !ok {
			return false
		}
		// Exact minute only: a tick missed in that minute misses the day.
		return nowLocal.Hour() == target.Hour() && nowLocal.Minute() == target.Minute()

	case StrategyRandomWindow:
		start, okS := parseClock24(cfg.WindowStart)
		end, okE := parseClock24(cfg.WindowEnd)
		if !okS || !okE {
			return false
		}
		startDT := clockOn(nowLocal, start, nowLocal.Location())
		endDT := clockOn(nowLocal, end, nowLocal.Location())
		return !nowLocal.Before(startDT) && !nowLocal.After(endDT)

	case StrategyUserDefined:
		raw, ok := p.Field(cfg.ContextKey)
		if !ok {
			return false
		}
		current := nowLocal.Format("15:04")
		for _, allowed := range strings.Split(raw, ",") {
			if strings.TrimSpace(allowed) == current {
				return true
			}
		}
		return false

	case StrategyRandomRelativeWindow:
		raw, ok := p.Field(cfg.BaseTimeField)
		if !ok {
			return false
		}
		base, ok := parseClock24(raw)
		if !ok {
			return false
		}
		startDT := clockOn(nowLocal, base, nowLocal.Location())
		endDT := startDT.Add(MealWindowDuration)
		return !nowLocal.Before(startDT) && !nowLocal.After(endDT)

	default:
		return false
	}
}
