package billing

import "time"

// MealDay flags the meals served to a guest on one calendar day.
type MealDay struct {
	Date      time.Time `json:"date"`
	Breakfast int       `json:"breakfast"`
	Lunch     int       `json:"lunch"`
	Dinner    int       `json:"dinner"`
}

// MealPrices holds per-meal prices for a contract or hotel.
type MealPrices struct {
	Breakfast Price `json:"breakfast"`
	Lunch     Price `json:"lunch"`
	Dinner    Price `json:"dinner"`
}

// MealTotals is the priced meal consumption inside a window.
type MealTotals struct {
	BreakfastCount  int
	LunchCount      int
	DinnerCount     int
	TotalMealCost   float64
	PriceUnresolved bool
}

// CalculateMeals sums meal counts dated inside window (inclusive, by calendar day)
// and prices them. Apartments and studios never carry meals.
func CalculateMeals(plan []MealDay, window Window, category Category, prices MealPrices) MealTotals {
	if !category.IncludesMeals() {
		return MealTotals{}
	}
	window = window.Normalize()
	first, last := window.Days()
	var totals MealTotals
	for _, day := range plan {
		d := DayOf(day.Date)
		if d < first || d > last {
			continue
		}
		totals.BreakfastCount += day.Breakfast
		totals.LunchCount += day.Lunch
		totals.DinnerCount += day.Dinner
	}
	totals.TotalMealCost = round2(
		float64(totals.BreakfastCount)*prices.Breakfast.Value() +
			float64(totals.LunchCount)*prices.Lunch.Value() +
			float64(totals.DinnerCount)*prices.Dinner.Value(),
	)
	totals.PriceUnresolved = (totals.BreakfastCount > 0 && !prices.Breakfast.Resolved) ||
		(totals.LunchCount > 0 && !prices.Lunch.Resolved) ||
		(totals.DinnerCount > 0 && !prices.Dinner.Resolved)
	return totals
}
