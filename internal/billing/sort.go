package billing

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collator compares display strings using locale rules.
type Collator interface {
	CompareString(a, b string) int
}

// NewCollator returns a locale-aware collator for tag.
func NewCollator(tag language.Tag) Collator {
	return collate.New(tag, collate.IgnoreCase)
}

// SortRows orders rows for presentation: hotel, category rank, room name, room id,
// guest name. Indexes are reassigned 1-based.
func SortRows(rows []AllocationRow, coll Collator) {
	if coll == nil {
		coll = NewCollator(language.Russian)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if c := coll.CompareString(a.HotelName, b.HotelName); c != 0 {
			return c < 0
		}
		if ra, rb := a.Category.Rank(), b.Category.Rank(); ra != rb {
			return ra < rb
		}
		if c := coll.CompareString(a.RoomName, b.RoomName); c != 0 {
			return c < 0
		}
		if a.RoomID != b.RoomID {
			return a.RoomID < b.RoomID
		}
		return coll.CompareString(a.PersonName, b.PersonName) < 0
	})
	for i := range rows {
		rows[i].Index = i + 1
	}
}
