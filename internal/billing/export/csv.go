package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/crewstay/crewstay/internal/billing"
)

// WriteCSV serialises the allocation rows followed by a totals line.
func WriteCSV(w io.Writer, doc Document) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range doc.Allocation.Rows {
		if err := writer.Write(csvRecord(row)); err != nil {
			return err
		}
	}
	living, meals, debt := doc.Allocation.Totals()
	total := make([]string, len(header))
	total[0] = "Итого"
	total[15], total[16], total[17] = plain(meals), plain(living), plain(debt)
	if err := writer.Write(total); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func csvRecord(row billing.AllocationRow) []string {
	return []string{
		strconv.Itoa(row.Index),
		row.HotelName,
		string(row.Category),
		row.RoomName,
		row.PersonName,
		row.PersonPosition,
		row.Arrival,
		row.Departure,
		row.StayStart,
		row.StayEnd,
		strconv.Itoa(row.TotalDays),
		plain(row.Price),
		strconv.Itoa(row.BreakfastCount),
		strconv.Itoa(row.LunchCount),
		strconv.Itoa(row.DinnerCount),
		plain(row.TotalMealCost),
		plain(row.TotalLivingCost),
		plain(row.TotalDebt),
		note(row),
	}
}
