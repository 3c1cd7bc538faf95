package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	// Exchange timezone lookups must not depend on the host zoneinfo.
	_ "time/tzdata"
)

// DefaultTimezone is the exchange timezone used when none is configured.
const DefaultTimezone = "America/New_York"

// ErrInvalidClock is returned when a clock string is not HH:MM.
var ErrInvalidClock = errors.New("invalid clock time")

// Date is an exchange-local calendar date encoded as YYYYMMDD.
type Date int

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date(y*10000 + int(m)*100 + d)
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date(year*10000 + int(month)*100 + day)
}

// ParseDate parses a 2006-01-02 string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// Year returns the year component.
func (d Date) Year() int { return int(d) / 10000 }

// Month returns the month component.
func (d Date) Month() time.Month { return time.Month(int(d) / 100 % 100) }

// Day returns the day-of-month component.
func (d Date) Day() int { return int(d) % 100 }

// Time returns midnight of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// String formats the date as 2006-01-02.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year(), int(d.Month()), d.Day())
}

// MarshalText implements encoding.TextMarshaler so dates key JSON objects.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ClockTime is an exchange-local wall-clock time in minutes since midnight.
type ClockTime int

// NewClock builds a ClockTime from hour and minute.
func NewClock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ClockOf returns the wall-clock time of t in loc, truncated to the minute.
func ClockOf(t time.Time, loc *time.Location) ClockTime {
	lt := t.In(loc)
	return NewClock(lt.Hour(), lt.Minute())
}

// ParseClock parses an HH:MM string.
func ParseClock(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return NewClock(h, m), nil
}

// String formats the clock as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalText implements encoding.TextMarshaler.
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
