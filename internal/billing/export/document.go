// Package export writes allocation results as CSV, XLSX and PDF documents.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/crewstay/crewstay/internal/billing"
)

// Format identifies an output document type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat normalises a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", s)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Document is everything an exporter needs to lay out a report.
type Document struct {
	Title       string
	Kind        billing.ReportKind
	Owner       string
	Allocation  billing.Allocation
	Formatter   billing.Formatter
	GeneratedAt time.Time
}

// Period renders the report window.
func (d Document) Period() string {
	return d.Formatter.Date(d.Allocation.Window.Start) + " - " + d.Formatter.Date(d.Allocation.Window.End)
}

var header = []string{
	"№", "Гостиница", "Категория", "Номер", "ФИО", "Должность",
	"Заезд", "Выезд", "Проживание с", "Проживание по", "Суток",
	"Цена", "Завтраки", "Обеды", "Ужины",
	"Питание", "Проживание", "Итого", "Примечание",
}

const unresolvedNote = "цена не найдена"

func note(row billing.AllocationRow) string {
	if !row.PriceUnresolved {
		return row.ShareNote
	}
	if row.ShareNote == "" {
		return unresolvedNote
	}
	return row.ShareNote + "; " + unresolvedNote
}

func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
