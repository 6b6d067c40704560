package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/crewstay/crewstay/internal/billing"
	"github.com/crewstay/crewstay/internal/platform/gotenberg"
)

// Renderer converts HTML into PDF bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html string, opts gotenberg.PageOptions) ([]byte, error)
}

// PDFExporter lays the report out as HTML and converts it through Gotenberg.
type PDFExporter struct {
	renderer Renderer
	tpl      *template.Template
}

// NewPDFExporter parses the report template.
func NewPDFExporter(renderer Renderer) (*PDFExporter, error) {
	tpl, err := template.New("allocation").Parse(allocationHTML)
	if err != nil {
		return nil, fmt.Errorf("export: parse template: %w", err)
	}
	return &PDFExporter{renderer: renderer, tpl: tpl}, nil
}

// HTML renders the document markup.
func (p *PDFExporter) HTML(doc Document) (string, error) {
	view := htmlView{
		Title:   doc.Title,
		Owner:   doc.Owner,
		Period:  doc.Period(),
		Header:  header,
		Created: doc.Formatter.DateTime(doc.GeneratedAt),
	}
	if view.Title == "" {
		view.Title = "Отчет о проживании"
	}
	for _, row := range doc.Allocation.Rows {
		view.Rows = append(view.Rows, htmlRow{Row: row, Price: doc.Formatter.Money(row.Price),
			Meals: doc.Formatter.Money(row.TotalMealCost), Living: doc.Formatter.Money(row.TotalLivingCost),
			Debt: doc.Formatter.Money(row.TotalDebt), Note: note(row)})
	}
	living, meals, debt := doc.Allocation.Totals()
	view.Living, view.Meals, view.Debt = doc.Formatter.Money(living), doc.Formatter.Money(meals), doc.Formatter.Money(debt)

	buf := &bytes.Buffer{}
	if err := p.tpl.Execute(buf, view); err != nil {
		return "", fmt.Errorf("export: render html: %w", err)
	}
	return buf.String(), nil
}

// Render produces the PDF document.
func (p *PDFExporter) Render(ctx context.Context, doc Document) ([]byte, error) {
	if p == nil || p.renderer == nil {
		return nil, fmt.Errorf("pdf exporter not initialised")
	}
	html, err := p.HTML(doc)
	if err != nil {
		return nil, err
	}
	return p.renderer.RenderHTML(ctx, html, gotenberg.A4Landscape)
}

type htmlView struct {
	Title   string
	Owner   string
	Period  string
	Created string
	Header  []string
	Rows    []htmlRow
	Living  string
	Meals   string
	Debt    string
}

type htmlRow struct {
	Row    billing.AllocationRow
	Price  string
	Meals  string
	Living string
	Debt   string
	Note   string
}

const allocationHTML = `<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; font-size: 9px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #444; padding: 2px 4px; }
td.num { text-align: right; white-space: nowrap; }
tr.total td { font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Owner}} {{.Period}}</p>
<table>
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.Row.Index}}</td><td>{{.Row.HotelName}}</td><td>{{.Row.Category}}</td><td>{{.Row.RoomName}}</td>
<td>{{.Row.PersonName}}</td><td>{{.Row.PersonPosition}}</td>
<td>{{.Row.Arrival}}</td><td>{{.Row.Departure}}</td><td>{{.Row.StayStart}}</td><td>{{.Row.StayEnd}}</td>
<td class="num">{{.Row.TotalDays}}</td><td class="num">{{.Price}}</td>
<td class="num">{{.Row.BreakfastCount}}</td><td class="num">{{.Row.LunchCount}}</td><td class="num">{{.Row.DinnerCount}}</td>
<td class="num">{{.Meals}}</td><td class="num">{{.Living}}</td><td class="num">{{.Debt}}</td><td>{{.Note}}</td>
</tr>
{{end}}<tr class="total"><td colspan="15">Итого</td><td class="num">{{.Meals}}</td><td class="num">{{.Living}}</td><td class="num">{{.Debt}}</td><td></td></tr>
</tbody>
</table>
{{if .Created}}<p>Сформирован {{.Created}}</p>{{end}}
</body>
</html>
`
