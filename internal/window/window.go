// Package window decides whether a participant is currently inside an
// eligible decision window, in their local time zone.
package window

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/model"
)

// Duration of a meal window from its configured start time.
const MealWindowDuration = 2 * time.Hour

// ParseClock12 parses a 12-hour clock string such as "01:00 PM".
func ParseClock12(s string) (time.Time, error) {
	t, err := time.Parse("03:04 PM", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t, nil
}

// clockOn places a parsed clock value on the given day in loc.
func clockOn(day time.Time, clock time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
}

// InMealWindow reports whether nowLocal falls inside the two-hour window
// starting at the 12-hour clock time in startStr. Both boundaries are
// inclusive. Malformed start strings are reported and count as not active.
func InMealWindow(startStr string, nowLocal time.Time, log zerolog.Logger) bool {
	clock, err := ParseClock12(startStr)
	if err != nil {
		log.Warn().Err(err).Str("value", startStr).Msg("unparseable meal window start")
		return false
	}
	start := clockOn(nowLocal, clock, nowLocal.Location())
	end := start.Add(MealWindowDuration)
	return !nowLocal.Before(start) && !nowLocal.After(end)
}

// ActiveMealWindows returns the identifiers of every meal window the
// participant is inside right now. A participant can be in more than one
// simultaneously; all of them are kept. The result is sorted so scheduling
// passes see a stable order.
func ActiveMealWindows(p model.Participant, nowUTC time.Time, log zerolog.Logger) []string {
	nowLocal := nowUTC.In(p.Location())

	var active []string
	for key, value := range p.CustomFields {
		if !strings.HasPrefix(key, model.MealtimePrefix) || strings.TrimSpace(value) == "" {
			continue
		}
		if InMealWindow(value, nowLocal, log.With().Str("participant", p.ID).Str("slot", key).Logger()) {
			active = append(active, key)
		}
	}
	sort.Strings(active)
	return active
}
