package billing

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders money and dates for exports.
type Formatter struct {
	printer  *message.Printer
	location *time.Location
}

// NewFormatter builds a formatter for the locale tag and display location.
func NewFormatter(tag language.Tag, loc *time.Location) Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return Formatter{printer: message.NewPrinter(tag), location: loc}
}

// Money renders v with locale grouping and exactly two fraction digits.
func (f Formatter) Money(v float64) string {
	p := f.printer
	if p == nil {
		p = message.NewPrinter(language.Russian)
	}
	return p.Sprint(number.Decimal(round2(v), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// DateTime renders t as DD.MM.YYYY HH:mm:ss in the formatter location.
func (f Formatter) DateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(f.loc()).Format(dateTimeLayout)
}

// Date renders t as DD.MM.YYYY in the formatter location.
func (f Formatter) Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(f.loc()).Format(dayLayout)
}

func (f Formatter) loc() *time.Location {
	if f.location == nil {
		return time.UTC
	}
	return f.location
}
