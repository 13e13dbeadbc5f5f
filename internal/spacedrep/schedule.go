package spacedrep

import (
	"time"

	"github.com/abhisek/mathprogress/internal/store"
)

// StageIntervals maps review stage 1..5 to the days until the next review.
var StageIntervals = map[int]int{1: 1, 2: 3, 3: 7, 4: 30, 5: 60}

// Stage bounds.
const (
	FirstStage = 1
	MaxStage   = 5
)

// IntervalDays returns the review interval for a stage, clamped to the
// defined stages.
func IntervalDays(stage int) int {
	stage = max(FirstStage, min(MaxStage, stage))
	return StageIntervals[stage]
}

// DefaultUTCOffset is the calendar offset used when none is configured.
const DefaultUTCOffset = 9 * time.Hour

// Calendar computes calendar dates in a fixed UTC offset so that "today"
// does not depend on the host's time zone.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar creates a calendar for the given offset from UTC.
func NewCalendar(offset time.Duration) *Calendar {
	return &Calendar{
		loc: time.FixedZone("review", int(offset.Seconds())),
		now: time.Now,
	}
}

// WithClock returns a copy of the calendar that reads time from now.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	return &Calendar{loc: c.loc, now: now}
}

// Now returns the current instant.
func (c *Calendar) Now() time.Time {
	return c.now().UTC()
}

// Today returns today's date in the calendar's offset.
func (c *Calendar) Today() string {
	return c.now().In(c.loc).Format(store.DateLayout)
}

// AddDays returns the date days after today.
func (c *Calendar) AddDays(days int) string {
	return c.now().In(c.loc).AddDate(0, 0, days).Format(store.DateLayout)
}
