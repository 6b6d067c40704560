package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a date input cannot be interpreted.
var ErrInvalidDate = errors.New("billing: invalid date")

const (
	dayLayout      = "02.01.2006"
	dateTimeLayout = "02.01.2006 15:04:05"
)

// zoned layouts carry an offset; the parsed value is converted into the parser location.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
}

// localLayouts are interpreted as wall-clock time in the parser location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"02.01.2006, 15:04:05",
}

// Parser normalises heterogeneous date inputs into local time.
type Parser struct {
	Location *time.Location
}

// NewParser returns a Parser bound to loc. A nil location means UTC.
func NewParser(loc *time.Location) Parser {
	return Parser{Location: loc}
}

func (p Parser) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Parse interprets value using the supported layouts. It never panics; malformed
// input yields an error wrapping ErrInvalidDate.
func (p Parser) Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	loc := p.location()
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
}

// ParseAny accepts strings and time values.
func (p Parser) ParseAny(value any) (time.Time, error) {
	switch v := value.(type) {
	case string:
		return p.Parse(v)
	case time.Time:
		if v.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", ErrInvalidDate)
		}
		return v.In(p.location()), nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", ErrInvalidDate)
		}
		return v.In(p.location()), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidDate, value)
	}
}

// TruncateDay returns midnight of t's calendar day in t's location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Day identifies a calendar day independent of location, as days since 1970-01-01.
type Day int

// DayOf returns the calendar day of t as observed in t's location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// Time returns midnight of the day in loc.
func (d Day) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	u := time.Unix(int64(d)*86400, 0).UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, loc)
}

// Next returns the following calendar day.
func (d Day) Next() Day { return d + 1 }

// Format renders the day as DD.MM.YYYY.
func (d Day) Format() string {
	return d.Time(time.UTC).Format(dayLayout)
}

// String implements fmt.Stringer.
func (d Day) String() string { return d.Format() }

func minDay(a, b Day) Day {
	if a < b {
		return a
	}
	return b
}

func maxDay(a, b Day) Day {
	if a > b {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
