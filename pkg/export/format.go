package export

import (
	"fmt"
	"strings"
)

// Format identifies an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Renderer turns a dataset into encoded bytes.
type Renderer interface {
	Render(data Dataset, title string) ([]byte, error)
}

// ParseFormat accepts csv, xlsx or pdf case-insensitively. Empty input means csv.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// RendererFor returns the default renderer for a format.
func RendererFor(f Format) Renderer {
	switch f {
	case FormatXLSX:
		return NewXLSXExporter()
	case FormatPDF:
		return NewPDFExporter()
	default:
		return NewCSVExporter()
	}
}
