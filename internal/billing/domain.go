package billing

import (
	"errors"
	"time"
)

// ErrNoRange occurs when no report window was supplied and none can be inferred.
var ErrNoRange = errors.New("billing: report range cannot be determined")

// ReportKind selects how prices are resolved for a report.
type ReportKind string

const (
	// KindAirline prices stays through the airline's airport contracts.
	KindAirline ReportKind = "airline"
	// KindHotel prices stays through the hotel's own price list.
	KindHotel ReportKind = "hotel"
)

// Valid reports whether k is a supported report kind.
func (k ReportKind) Valid() bool {
	return k == KindAirline || k == KindHotel
}

// Category is the room tier driving price lookup.
type Category string

const (
	CategoryOnePlace     Category = "onePlace"
	CategoryTwoPlace     Category = "twoPlace"
	CategoryThreePlace   Category = "threePlace"
	CategoryFourPlace    Category = "fourPlace"
	CategoryFivePlace    Category = "fivePlace"
	CategorySixPlace     Category = "sixPlace"
	CategorySeventhPlace Category = "seventhPlace"
	CategoryEighthPlace  Category = "eighthPlace"
	CategoryNinthPlace   Category = "ninthPlace"
	CategoryTenthPlace   Category = "tenthPlace"
	CategoryStudio       Category = "studio"
	CategoryApartment    Category = "apartment"
	CategoryLuxe         Category = "luxe"
)

var categoryOrder = []Category{
	CategoryOnePlace,
	CategoryTwoPlace,
	CategoryThreePlace,
	CategoryFourPlace,
	CategoryFivePlace,
	CategorySixPlace,
	CategorySeventhPlace,
	CategoryEighthPlace,
	CategoryNinthPlace,
	CategoryTenthPlace,
	CategoryStudio,
	CategoryApartment,
	CategoryLuxe,
}

// Rank returns the presentation order of the category; unknown categories sort last.
func (c Category) Rank() int {
	for i, known := range categoryOrder {
		if known == c {
			return i
		}
	}
	return len(categoryOrder)
}

// IncludesMeals is false for room kinds that never carry a meal plan.
func (c Category) IncludesMeals() bool {
	return c != CategoryApartment && c != CategoryStudio
}

// Price is either a resolved amount or an explicit unresolved marker.
type Price struct {
	Amount   float64 `json:"amount"`
	Resolved bool    `json:"resolved"`
}

// Resolved wraps a known amount.
func Resolved(amount float64) Price {
	return Price{Amount: amount, Resolved: true}
}

// Unresolved marks a price that could not be found.
func Unresolved() Price {
	return Price{}
}

// Or returns p when resolved, otherwise fallback.
func (p Price) Or(fallback Price) Price {
	if p.Resolved {
		return p
	}
	return fallback
}

// Value returns the amount, treating unresolved prices as zero.
func (p Price) Value() float64 {
	if !p.Resolved {
		return 0
	}
	return p.Amount
}

// Window is the caller requested reporting period.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Normalize swaps inverted bounds.
func (w Window) Normalize() Window {
	if w.End.Before(w.Start) {
		return Window{Start: w.End, End: w.Start}
	}
	return w
}

// Contains reports whether t lies in the window, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Days returns the first and last calendar day covered by the window.
func (w Window) Days() (Day, Day) {
	return DayOf(w.Start), DayOf(w.End)
}

// BookingRecord is one guest's stay as relevant to a single report run.
type BookingRecord struct {
	PersonName      string
	PersonPosition  string
	RoomID          string
	RoomName        string
	HotelName       string
	Category        Category
	Arrival         time.Time
	Departure       time.Time
	TotalDays       float64
	TotalLivingCost float64
	// DailyRate is the explicit price per day; when unresolved it is derived
	// from TotalLivingCost / TotalDays.
	DailyRate      Price
	BreakfastCount int
	LunchCount     int
	DinnerCount    int
	TotalMealCost  float64
}

// RoomKey groups bookings into a physical room.
func (b BookingRecord) RoomKey() string {
	if b.RoomID != "" {
		return b.RoomID
	}
	return b.RoomName
}

// Rate resolves the per-day price of the booking.
func (b BookingRecord) Rate() Price {
	if b.DailyRate.Resolved {
		return b.DailyRate
	}
	if b.TotalDays > 0 && b.TotalLivingCost != 0 {
		return Resolved(b.TotalLivingCost / b.TotalDays)
	}
	return Unresolved()
}

// AllocationRow is one output line per (guest, room) pair.
type AllocationRow struct {
	Index int `json:"index"`
	// Arrival and Departure carry the report window bounds.
	Arrival   string `json:"arrival"`
	Departure string `json:"departure"`
	// StayStart and StayEnd carry the guest's clipped occupancy in this room.
	StayStart       string   `json:"stayStart"`
	StayEnd         string   `json:"stayEnd"`
	TotalDays       int      `json:"totalDays"`
	Category        Category `json:"category"`
	PersonName      string   `json:"personName"`
	PersonPosition  string   `json:"personPosition"`
	RoomName        string   `json:"roomName"`
	RoomID          string   `json:"roomId"`
	HotelName       string   `json:"hotelName"`
	ShareNote       string   `json:"shareNote"`
	Price           float64  `json:"price"`
	PriceUnresolved bool     `json:"priceUnresolved"`
	BreakfastCount  int      `json:"breakfastCount"`
	LunchCount      int      `json:"lunchCount"`
	DinnerCount     int      `json:"dinnerCount"`
	TotalMealCost   float64  `json:"totalMealCost"`
	TotalLivingCost float64  `json:"totalLivingCost"`
	TotalDebt       float64  `json:"totalDebt"`
}

// SkippedRecord explains why an input record was left out of a report.
type SkippedRecord struct {
	Index  int    `json:"index"`
	Person string `json:"personName"`
	Reason string `json:"reason"`
}

// Allocation is the result of BuildAllocation.
type Allocation struct {
	Window  Window          `json:"window"`
	Rows    []AllocationRow `json:"rows"`
	Skipped []SkippedRecord `json:"skipped"`
}

// Totals sums living cost, meal cost and debt across rows.
func (a Allocation) Totals() (living, meals, debt float64) {
	for _, row := range a.Rows {
		living += row.TotalLivingCost
		meals += row.TotalMealCost
		debt += row.TotalDebt
	}
	return round2(living), round2(meals), round2(debt)
}

// UnresolvedCount returns the number of rows carrying unresolved prices.
func (a Allocation) UnresolvedCount() int {
	n := 0
	for _, row := range a.Rows {
		if row.PriceUnresolved {
			n++
		}
	}
	return n
}
