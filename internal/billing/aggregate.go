package billing

import (
	"sort"
	"time"
)

// PriceSource resolves room and meal prices for a single report owner.
type PriceSource interface {
	RoomRate(category Category, airport string) Price
	MealPrices(airport string) MealPrices
}

// Stay is a raw accommodation request as loaded from storage.
type Stay struct {
	RequestID      string
	PersonName     string
	PersonPosition string
	AirportCode    string
	HotelName      string
	RoomID         string
	RoomName       string
	Category       Category
	Arrival        time.Time
	Departure      time.Time
	// DailyRate overrides the price book when resolved.
	DailyRate Price
	MealPlan  []MealDay
}

// AggregateRequests turns stays into booking records clipped to window. Stays that
// do not intersect the window are dropped.
func AggregateRequests(stays []Stay, window Window, prices PriceSource) []BookingRecord {
	window = window.Normalize()
	records := make([]BookingRecord, 0, len(stays))
	for _, stay := range stays {
		arrival, departure := stay.Arrival, stay.Departure
		if departure.Before(arrival) {
			arrival, departure = departure, arrival
		}
		days := EffectiveDays(arrival, departure, window)
		if days <= 0 {
			continue
		}
		rate := stay.DailyRate
		var meals MealPrices
		if prices != nil {
			rate = rate.Or(prices.RoomRate(stay.Category, stay.AirportCode))
			meals = prices.MealPrices(stay.AirportCode)
		}
		effective := Window{Start: maxTime(arrival, window.Start), End: minTime(departure, window.End)}
		totals := CalculateMeals(stay.MealPlan, effective, stay.Category, meals)
		records = append(records, BookingRecord{
			PersonName:      stay.PersonName,
			PersonPosition:  stay.PersonPosition,
			RoomID:          stay.RoomID,
			RoomName:        stay.RoomName,
			HotelName:       stay.HotelName,
			Category:        stay.Category,
			Arrival:         arrival,
			Departure:       departure,
			TotalDays:       days,
			TotalLivingCost: round2(days * rate.Value()),
			DailyRate:       rate,
			BreakfastCount:  totals.BreakfastCount,
			LunchCount:      totals.LunchCount,
			DinnerCount:     totals.DinnerCount,
			TotalMealCost:   totals.TotalMealCost,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Arrival.Before(records[j].Arrival)
	})
	return records
}
