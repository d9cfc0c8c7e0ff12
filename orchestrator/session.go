package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"optionflow/config"
)

// clockTime is a wall-clock instant within a day, minutes since midnight.
type clockTime int

func parseClock(value string) (clockTime, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("parse clock time '%s': %w", value, err)
	}
	return clockTime(t.Hour()*60 + t.Minute()), nil
}

func minutesInto(t time.Time) clockTime {
	return clockTime(t.Hour()*60 + t.Minute())
}

// SessionCalendar answers whether the market is open at an instant and where
// trading-day boundaries fall, all in the configured exchange timezone.
type SessionCalendar struct {
	loc       *time.Location
	open      clockTime
	close     clockTime
	eodCutoff clockTime
	weekdays  map[time.Weekday]bool
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func NewSessionCalendar(cfg config.SessionConfig) (*SessionCalendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone '%s': %w", cfg.Timezone, err)
	}

	open, err := parseClock(cfg.Open)
	if err != nil {
		return nil, err
	}
	closeAt, err := parseClock(cfg.Close)
	if err != nil {
		return nil, err
	}
	cutoff, err := parseClock(cfg.EODCutoff)
	if err != nil {
		return nil, err
	}
	if closeAt <= open {
		return nil, fmt.Errorf("session close %s must be after open %s", cfg.Close, cfg.Open)
	}
	if cutoff < closeAt {
		return nil, fmt.Errorf("eod cutoff %s must not precede close %s", cfg.EODCutoff, cfg.Close)
	}

	weekdays := make(map[time.Weekday]bool, len(cfg.Weekdays))
	for _, name := range cfg.Weekdays {
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday '%s'", name)
		}
		weekdays[wd] = true
	}

	return &SessionCalendar{
		loc:       loc,
		open:      open,
		close:     closeAt,
		eodCutoff: cutoff,
		weekdays:  weekdays,
	}, nil
}

func (c *SessionCalendar) local(t time.Time) time.Time { return t.In(c.loc) }

func (c *SessionCalendar) IsTradingDay(t time.Time) bool {
	return c.weekdays[c.local(t).Weekday()]
}

// IsOpen reports whether t falls inside the trading session.
func (c *SessionCalendar) IsOpen(t time.Time) bool {
	lt := c.local(t)
	if !c.weekdays[lt.Weekday()] {
		return false
	}
	m := minutesInto(lt)
	return m >= c.open && m < c.close
}

// EODDue reports whether t is past the rollup cutoff on a trading day.
func (c *SessionCalendar) EODDue(t time.Time) bool {
	lt := c.local(t)
	return c.weekdays[lt.Weekday()] && minutesInto(lt) >= c.eodCutoff
}

// TradingDay truncates t to midnight of its trading day in exchange time.
func (c *SessionCalendar) TradingDay(t time.Time) time.Time {
	lt := c.local(t)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc)
}
