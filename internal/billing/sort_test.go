package billing

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestSortRows(t *testing.T) {
	rows := []AllocationRow{
		{HotelName: "Якорь", Category: CategoryOnePlace, RoomName: "1", PersonName: "Ершов"},
		{HotelName: "Азимут", Category: CategoryTwoPlace, RoomName: "10", RoomID: "b", PersonName: "Борисов"},
		{HotelName: "Азимут", Category: CategoryTwoPlace, RoomName: "10", RoomID: "a", PersonName: "Яковлев"},
		{HotelName: "Азимут", Category: CategoryOnePlace, RoomName: "20", PersonName: "Алексеев"},
		{HotelName: "азимут", Category: CategoryStudio, RoomName: "5", PersonName: "Волков"},
		{HotelName: "Азимут", Category: CategoryTwoPlace, RoomName: "10", RoomID: "a", PersonName: "Андреев"},
	}
	SortRows(rows, NewCollator(language.Russian))
	got := make([]string, len(rows))
	for i, row := range rows {
		got[i] = row.PersonName
		if row.Index != i+1 {
			t.Fatalf("expected index %d got %d", i+1, row.Index)
		}
	}
	want := "Алексеев,Андреев,Яковлев,Борисов,Волков,Ершов"
	if strings.Join(got, ",") != want {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestCategoryRank(t *testing.T) {
	if CategoryOnePlace.Rank() >= CategoryTwoPlace.Rank() {
		t.Fatalf("expected one place before two place")
	}
	if CategoryLuxe.Rank() >= Category("penthouse").Rank() {
		t.Fatalf("expected unknown categories last")
	}
}

func TestFormatterMoney(t *testing.T) {
	f := NewFormatter(language.English, time.UTC)
	if got := f.Money(9800); got != "9,800.00" {
		t.Fatalf("expected 9,800.00 got %q", got)
	}
	if got := f.Money(1234567.891); got != "1,234,567.89" {
		t.Fatalf("expected 1,234,567.89 got %q", got)
	}
	ru := NewFormatter(language.Russian, time.UTC).Money(9800.5)
	if !strings.HasSuffix(ru, ",50") || !strings.HasPrefix(ru, "9") || !strings.Contains(ru, "800") {
		t.Fatalf("unexpected russian money %q", ru)
	}
}

func TestFormatterDates(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	f := NewFormatter(language.Russian, loc)
	ts := time.Date(2025, time.January, 31, 22, 15, 5, 0, time.UTC)
	if got := f.DateTime(ts); got != "01.02.2025 01:15:05" {
		t.Fatalf("unexpected datetime %q", got)
	}
	if got := f.Date(ts); got != "01.02.2025" {
		t.Fatalf("unexpected date %q", got)
	}
	if f.DateTime(time.Time{}) != "" {
		t.Fatalf("expected empty string for zero time")
	}
}
