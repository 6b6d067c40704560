package billing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// InputRecord is the boundary shape of a booking with string dates.
type InputRecord struct {
	PersonName      string   `json:"personName"`
	PersonPosition  string   `json:"personPosition"`
	RoomName        string   `json:"roomName"`
	RoomID          string   `json:"roomId"`
	Category        string   `json:"category"`
	HotelName       string   `json:"hotelName"`
	Arrival         string   `json:"arrival"`
	Departure       string   `json:"departure"`
	TotalDays       float64  `json:"totalDays" validate:"gte=0"`
	TotalLivingCost float64  `json:"totalLivingCost"`
	Price           *float64 `json:"price,omitempty"`
	BreakfastCount  int      `json:"breakfastCount" validate:"gte=0"`
	LunchCount      int      `json:"lunchCount" validate:"gte=0"`
	DinnerCount     int      `json:"dinnerCount" validate:"gte=0"`
	TotalMealCost   float64  `json:"totalMealCost"`
}

// AllocationInput groups raw records and optional explicit window bounds.
type AllocationInput struct {
	Records    []InputRecord `json:"records" validate:"max=2000,dive"`
	RangeStart string        `json:"rangeStart,omitempty"`
	RangeEnd   string        `json:"rangeEnd,omitempty"`
}

// BuildAllocationFromInput parses raw records and allocates them. Records with
// unparseable dates are reported in Allocation.Skipped.
func BuildAllocationFromInput(input AllocationInput, parser Parser) (Allocation, error) {
	var window *Window
	if input.RangeStart != "" || input.RangeEnd != "" {
		start, err := parser.Parse(firstNonEmpty(input.RangeStart, input.RangeEnd))
		if err != nil {
			return Allocation{}, fmt.Errorf("range start: %w", err)
		}
		end, err := parser.Parse(firstNonEmpty(input.RangeEnd, input.RangeStart))
		if err != nil {
			return Allocation{}, fmt.Errorf("range end: %w", err)
		}
		window = &Window{Start: start, End: end}
	}

	records := make([]BookingRecord, 0, len(input.Records))
	indexes := make([]int, 0, len(input.Records))
	var skipped []SkippedRecord
	for i, raw := range input.Records {
		arrival, err := parser.Parse(raw.Arrival)
		if err != nil {
			skipped = append(skipped, SkippedRecord{Index: i, Person: raw.PersonName, Reason: "arrival: " + err.Error()})
			continue
		}
		departure, err := parser.Parse(raw.Departure)
		if err != nil {
			skipped = append(skipped, SkippedRecord{Index: i, Person: raw.PersonName, Reason: "departure: " + err.Error()})
			continue
		}
		rate := Unresolved()
		if raw.Price != nil {
			rate = Resolved(*raw.Price)
		}
		records = append(records, BookingRecord{
			PersonName:      strings.TrimSpace(raw.PersonName),
			PersonPosition:  raw.PersonPosition,
			RoomID:          strings.TrimSpace(raw.RoomID),
			RoomName:        strings.TrimSpace(raw.RoomName),
			HotelName:       raw.HotelName,
			Category:        Category(raw.Category),
			Arrival:         arrival,
			Departure:       departure,
			TotalDays:       raw.TotalDays,
			TotalLivingCost: raw.TotalLivingCost,
			DailyRate:       rate,
			BreakfastCount:  raw.BreakfastCount,
			LunchCount:      raw.LunchCount,
			DinnerCount:     raw.DinnerCount,
			TotalMealCost:   raw.TotalMealCost,
		})
		indexes = append(indexes, i)
	}

	alloc, err := BuildAllocation(records, window)
	if err != nil {
		if errors.Is(err, ErrNoRange) && len(skipped) > 0 {
			return Allocation{Skipped: skipped}, err
		}
		return Allocation{}, err
	}
	for i := range alloc.Skipped {
		alloc.Skipped[i].Index = indexes[alloc.Skipped[i].Index]
	}
	alloc.Skipped = append(skipped, alloc.Skipped...)
	sort.SliceStable(alloc.Skipped, func(i, j int) bool {
		return alloc.Skipped[i].Index < alloc.Skipped[j].Index
	})
	return alloc, nil
}

// MaxStayDays bounds the span of a single booking. Longer bookings are skipped.
const MaxStayDays = 731

type normalizedBooking struct {
	record BookingRecord
	from   Day
	to     Day
	rate   Price
}

type occupantKey struct {
	room  string
	guest string
}

type roomDay struct {
	occupants map[string]struct{}
	rates     []float64
}

type guestAccumulator struct {
	first      BookingRecord
	days       []Day
	living     float64
	rateSum    float64
	rateDays   int
	unresolved bool
}

// BuildAllocation apportions room cost across simultaneous occupants and returns
// one row per (guest, room) pair. When window is nil the range is inferred from
// the bookings. Rows are sorted by room key then guest name.
func BuildAllocation(records []BookingRecord, window *Window) (Allocation, error) {
	bookings, skipped := normalizeBookings(records)

	var rs, re Day
	var out Window
	switch {
	case window != nil:
		out = window.Normalize()
		rs, re = out.Days()
	case len(bookings) > 0:
		rs, re = bookings[0].from, bookings[0].to
		for _, b := range bookings[1:] {
			rs = minDay(rs, b.from)
			re = maxDay(re, b.to)
		}
		loc := bookings[0].record.Arrival.Location()
		out = Window{Start: rs.Time(loc), End: re.Time(loc)}
	default:
		return Allocation{}, ErrNoRange
	}

	rooms := make(map[string]map[Day]*roomDay)
	guests := make(map[occupantKey]*guestAccumulator)
	for _, b := range bookings {
		from, to := maxDay(b.from, rs), minDay(b.to, re)
		if from > to {
			continue
		}
		room := b.record.RoomKey()
		days, ok := rooms[room]
		if !ok {
			days = make(map[Day]*roomDay)
			rooms[room] = days
		}
		key := occupantKey{room: room, guest: b.record.PersonName}
		if _, ok := guests[key]; !ok {
			guests[key] = &guestAccumulator{first: b.record}
		}
		for d := from; d <= to; d = d.Next() {
			slot, ok := days[d]
			if !ok {
				slot = &roomDay{occupants: make(map[string]struct{})}
				days[d] = slot
			}
			slot.occupants[b.record.PersonName] = struct{}{}
			if b.rate.Resolved && b.rate.Amount != 0 {
				slot.rates = append(slot.rates, b.rate.Amount)
			}
		}
	}

	for room, days := range rooms {
		for _, d := range sortedDays(days) {
			slot := days[d]
			rate := average(slot.rates)
			n := len(slot.occupants)
			for guest := range slot.occupants {
				acc := guests[occupantKey{room: room, guest: guest}]
				acc.days = append(acc.days, d)
				if rate == 0 {
					acc.unresolved = true
					continue
				}
				acc.living += rate / float64(n)
				acc.rateSum += rate
				acc.rateDays++
			}
		}
	}

	rows := make([]AllocationRow, 0, len(guests))
	for key, acc := range guests {
		if len(acc.days) == 0 {
			continue
		}
		sort.Slice(acc.days, func(i, j int) bool { return acc.days[i] < acc.days[j] })
		meals := sumMeals(bookings, key, rs, re)
		living := round2(acc.living)
		price := 0.0
		if acc.rateDays > 0 {
			price = round2(acc.rateSum / float64(acc.rateDays))
		}
		rows = append(rows, AllocationRow{
			Arrival:         out.Start.Format(dateTimeLayout),
			Departure:       out.End.Format(dateTimeLayout),
			StayStart:       acc.days[0].Format(),
			StayEnd:         acc.days[len(acc.days)-1].Format(),
			TotalDays:       len(acc.days),
			Category:        acc.first.Category,
			PersonName:      key.guest,
			PersonPosition:  acc.first.PersonPosition,
			RoomName:        acc.first.RoomName,
			RoomID:          acc.first.RoomID,
			HotelName:       acc.first.HotelName,
			ShareNote:       shareNote(rooms[key.room], key.guest, acc.days),
			Price:           price,
			PriceUnresolved: acc.unresolved,
			BreakfastCount:  meals.BreakfastCount,
			LunchCount:      meals.LunchCount,
			DinnerCount:     meals.DinnerCount,
			TotalMealCost:   meals.TotalMealCost,
			TotalLivingCost: living,
			TotalDebt:       round2(living + meals.TotalMealCost),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		ki, kj := roomKeyOf(rows[i]), roomKeyOf(rows[j])
		if ki != kj {
			return ki < kj
		}
		return rows[i].PersonName < rows[j].PersonName
	})
	for i := range rows {
		rows[i].Index = i + 1
	}
	return Allocation{Window: out, Rows: rows, Skipped: skipped}, nil
}

func normalizeBookings(records []BookingRecord) ([]normalizedBooking, []SkippedRecord) {
	bookings := make([]normalizedBooking, 0, len(records))
	var skipped []SkippedRecord
	for i, rec := range records {
		switch {
		case rec.Arrival.IsZero() || rec.Departure.IsZero():
			skipped = append(skipped, SkippedRecord{Index: i, Person: rec.PersonName, Reason: "missing arrival or departure"})
			continue
		case strings.TrimSpace(rec.PersonName) == "":
			skipped = append(skipped, SkippedRecord{Index: i, Person: rec.PersonName, Reason: "missing guest name"})
			continue
		case rec.RoomKey() == "":
			skipped = append(skipped, SkippedRecord{Index: i, Person: rec.PersonName, Reason: "missing room"})
			continue
		}
		if rec.Departure.Before(rec.Arrival) {
			rec.Arrival, rec.Departure = rec.Departure, rec.Arrival
		}
		from, to := DayOf(rec.Arrival), DayOf(rec.Departure)
		if int(to-from)+1 > MaxStayDays {
			skipped = append(skipped, SkippedRecord{Index: i, Person: rec.PersonName,
				Reason: fmt.Sprintf("stay spans %d days, limit %d", int(to-from)+1, MaxStayDays)})
			continue
		}
		bookings = append(bookings, normalizedBooking{
			record: rec,
			from:   from,
			to:     to,
			rate:   rec.Rate(),
		})
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].from < bookings[j].from
	})
	return bookings, skipped
}

func sumMeals(bookings []normalizedBooking, key occupantKey, rs, re Day) MealTotals {
	var totals MealTotals
	for _, b := range bookings {
		if b.record.PersonName != key.guest || b.record.RoomKey() != key.room {
			continue
		}
		if b.to < rs || b.from > re || !b.record.Category.IncludesMeals() {
			continue
		}
		totals.BreakfastCount += b.record.BreakfastCount
		totals.LunchCount += b.record.LunchCount
		totals.DinnerCount += b.record.DinnerCount
		totals.TotalMealCost += b.record.TotalMealCost
	}
	totals.TotalMealCost = round2(totals.TotalMealCost)
	return totals
}

// shareNote collapses consecutive days with identical co-occupants into segments.
func shareNote(days map[Day]*roomDay, guest string, occupied []Day) string {
	type segment struct {
		from, to Day
		others   string
	}
	var segments []segment
	for _, d := range occupied {
		others := coOccupants(days[d], guest)
		if n := len(segments); n > 0 && segments[n-1].to.Next() == d && segments[n-1].others == others {
			segments[n-1].to = d
			continue
		}
		segments = append(segments, segment{from: d, to: d, others: others})
	}
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.others == "" {
			parts = append(parts, fmt.Sprintf("с %s по %s жил один", s.from.Format(), s.to.Format()))
			continue
		}
		parts = append(parts, fmt.Sprintf("с %s по %s жил с: %s", s.from.Format(), s.to.Format(), s.others))
	}
	return strings.Join(parts, "; ")
}

func coOccupants(slot *roomDay, guest string) string {
	if slot == nil {
		return ""
	}
	names := make([]string, 0, len(slot.occupants))
	for name := range slot.occupants {
		if name != guest {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func sortedDays(days map[Day]*roomDay) []Day {
	keys := make([]Day, 0, len(days))
	for d := range days {
		keys = append(keys, d)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func roomKeyOf(row AllocationRow) string {
	if row.RoomID != "" {
		return row.RoomID
	}
	return row.RoomName
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
