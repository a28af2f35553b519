// Package alarm fires the daily cycle trigger at a fixed local time.
package alarm

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Alarm manages the cron-based daily trigger with timezone support.
type Alarm struct {
	cron     *cron.Cron
	location *time.Location
	mu       sync.Mutex
	entryID  cron.EntryID
	hour     int
	minute   int
	started  bool
}

// New creates an alarm for the given timezone.
func New(timezone string) (*Alarm, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	return &Alarm{
		cron:     cron.New(cron.WithLocation(loc)),
		location: loc,
	}, nil
}

// Location returns the alarm's timezone.
func (a *Alarm) Location() *time.Location {
	return a.location
}

// Schedule sets the daily trigger time (HH:MM format), replacing any
// previous one.
func (a *Alarm) Schedule(timeStr string, fn func()) error {
	hour, minute, err := parseTime(timeStr)
	if err != nil {
		return err
	}

	spec := buildCronSpec(hour, minute)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.entryID != 0 {
		a.cron.Remove(a.entryID)
	}

	entryID, err := a.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	a.entryID = entryID
	a.hour = hour
	a.minute = minute

	return nil
}

// MinutesUntilNext returns the minutes from now until the scheduled
// daily trigger. Zero when nothing is scheduled yet.
func (a *Alarm) MinutesUntilNext(now time.Time) int {
	a.mu.Lock()
	hour, minute, entryID := a.hour, a.minute, a.entryID
	a.mu.Unlock()

	if entryID == 0 {
		return 0
	}
	return MinutesUntil(now, hour, minute, a.location)
}

// Start begins firing.
func (a *Alarm) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		a.cron.Start()
		a.started = true
	}
}

// Stop halts firing.
func (a *Alarm) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		a.cron.Stop()
		a.started = false
	}
}

// MinutesUntil returns the minutes from now until the next occurrence
// of hour:minute in the given location, rolling past midnight when the
// target has already passed today.
func MinutesUntil(now time.Time, hour, minute int, loc *time.Location) int {
	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !target.After(local) {
		target = target.AddDate(0, 0, 1)
	}
	return int(target.Sub(local).Minutes())
}

func parseTime(timeStr string) (int, int, error) {
	matches := timeRegex.FindStringSubmatch(timeStr)
	if len(matches) != 3 {
		return 0, 0, fmt.Errorf("invalid time format: %q (expected HH:MM)", timeStr)
	}

	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])

	return hour, minute, nil
}

func buildCronSpec(hour, minute int) string {
	// Cron format: minute hour day month weekday
	return fmt.Sprintf("%d %d * * *", minute, hour)
}
