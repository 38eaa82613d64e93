package scheduler

import (
	"time"

	"github.com/healthlab-css/glowup-mrt/internal/model"
	"github.com/healthlab-css/glowup-mrt/internal/randomize"
	"github.com/healthlab-css/glowup-mrt/internal/window"
)

// randomSendTime picks a uniformly random minute inside the two-hour window
// that starts at the 12-hour clock time in startStr, on "today" in loc.
// The lower bound is whichever of window start and now is later; if the
// window has already closed the slot is lost for the day.
// The result is in UTC.
func randomSendTime(startStr string, loc *time.Location, nowUTC time.Time, rng randomize.Rand) (time.Time, error) {
	clock, err := window.ParseClock12(startStr)
	if err != nil {
		return time.Time{}, err
	}

	nowLocal := nowUTC.In(loc)
	start := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(),
		clock.Hour(), clock.Minute(), 0, 0, loc)
	end := start.Add(window.MealWindowDuration)

	if nowLocal.After(end) {
		return time.Time{}, model.ErrWindowPassed
	}

	lower := start
	if nowLocal.After(lower) {
		lower = nowLocal.Truncate(time.Minute)
	}
	minutes := int(end.Sub(lower).Minutes())
	offset := time.Duration(rng.Intn(minutes+1)) * time.Minute
	return lower.Add(offset).UTC(), nil
}
