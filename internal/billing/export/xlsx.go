package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName  = "Отчет"
	headerRow  = 3
	moneyStyle = 4 // builtin "#,##0.00"
)

// WriteXLSX renders the allocation as a single sheet workbook.
func WriteXLSX(w io.Writer, doc Document) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyStyle})
	if err != nil {
		return err
	}

	title := doc.Title
	if title == "" {
		title = "Отчет о проживании"
	}
	if err := f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s %s", title, doc.Period())); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", bold); err != nil {
		return err
	}
	if err := setRow(f, headerRow, toAny(header)); err != nil {
		return err
	}
	if err := styleRow(f, headerRow, bold); err != nil {
		return err
	}

	rowNum := headerRow
	for _, row := range doc.Allocation.Rows {
		rowNum++
		values := []any{
			row.Index, row.HotelName, string(row.Category), row.RoomName, row.PersonName, row.PersonPosition,
			row.Arrival, row.Departure, row.StayStart, row.StayEnd, row.TotalDays,
			row.Price, row.BreakfastCount, row.LunchCount, row.DinnerCount,
			row.TotalMealCost, row.TotalLivingCost, row.TotalDebt, note(row),
		}
		if err := setRow(f, rowNum, values); err != nil {
			return err
		}
		if err := styleMoney(f, rowNum, money); err != nil {
			return err
		}
	}

	rowNum++
	living, meals, debt := doc.Allocation.Totals()
	total := make([]any, len(header))
	total[0] = "Итого"
	total[15], total[16], total[17] = meals, living, debt
	if err := setRow(f, rowNum, total); err != nil {
		return err
	}
	if err := styleMoney(f, rowNum, money); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "B", "F", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "G", "J", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "S", "S", 60); err != nil {
		return err
	}
	return f.Write(w)
}

func setRow(f *excelize.File, row int, values []any) error {
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func styleRow(f *excelize.File, row, style int) error {
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(header), row)
	return f.SetCellStyle(sheetName, first, last, style)
}

func styleMoney(f *excelize.File, row, style int) error {
	for _, col := range []int{12, 16, 17, 18} {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
