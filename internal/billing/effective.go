package billing

import (
	"math"
	"time"
)

// Check-in/check-out thresholds expressed as offsets from midnight.
const (
	earlyArrivalCutoff   = 6 * time.Hour
	standardCheckIn      = 14 * time.Hour
	standardCheckOut     = 12 * time.Hour
	lateCheckOutCutoff   = 18 * time.Hour
	nightTransferArrival = 10 * time.Minute
	endOfDayDeparture    = 23*time.Hour + 50*time.Minute
)

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

// ArrivalAdjustment returns the extra billable day fraction for an arrival time.
// Arrivals at exactly 00:10 are booked as the previous night and add nothing.
func ArrivalAdjustment(arrival time.Time) float64 {
	tod := timeOfDay(arrival)
	switch {
	case tod == nightTransferArrival:
		return 0
	case tod < earlyArrivalCutoff:
		return 1
	case tod < standardCheckIn:
		return 0.5
	default:
		return 0
	}
}

// DepartureAdjustment returns the extra billable day fraction for a departure time.
func DepartureAdjustment(departure time.Time) float64 {
	tod := timeOfDay(departure)
	switch {
	case tod == endOfDayDeparture, tod >= lateCheckOutCutoff:
		return 1
	case tod > standardCheckOut:
		return 0.5
	default:
		return 0
	}
}

// EffectiveDays computes the fractional billable days of a stay clipped to window.
// The result is deterministic and never negative.
func EffectiveDays(arrival, departure time.Time, window Window) float64 {
	window = window.Normalize()
	start := maxTime(arrival, window.Start)
	end := minTime(departure, window.End)
	if !end.After(start) {
		return 0
	}
	base := float64(DayOf(end) - DayOf(start))
	days := base + ArrivalAdjustment(start) + DepartureAdjustment(end)
	return math.Max(0, days)
}
