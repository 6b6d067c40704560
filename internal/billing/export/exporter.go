package export

import (
	"context"
	"errors"
	"io"
)

// ErrPDFUnavailable is returned when no PDF backend is configured.
var ErrPDFUnavailable = errors.New("export: pdf rendering not configured")

// Exporter dispatches a document to the writer for its format.
type Exporter struct {
	PDF *PDFExporter
}

// Write encodes doc into w using format.
func (e Exporter) Write(ctx context.Context, w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, doc)
	case FormatXLSX:
		return WriteXLSX(w, doc)
	case FormatPDF:
		if e.PDF == nil {
			return ErrPDFUnavailable
		}
		pdf, err := e.PDF.Render(ctx, doc)
		if err != nil {
			return err
		}
		_, err = w.Write(pdf)
		return err
	default:
		_, err := ParseFormat(string(format))
		return err
	}
}
