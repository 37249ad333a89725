// Package render draws a WorkflowGraph as an image through an ordered chain of
// interchangeable strategies.
package render

import (
	"strings"

	"github.com/PFerreria/Concilium/pkg/failure"
)

// Format is an output image format.
type Format string

const (
	FormatPNG Format = "png" // raster
	FormatSVG Format = "svg" // vector
	FormatPDF Format = "pdf" // paginated document
)

// Formats lists the supported formats.
var Formats = []Format{FormatPNG, FormatSVG, FormatPDF}

// ParseFormat accepts a format name or one of the configuration aliases
// raster, vector and document.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "png", "raster":
		return FormatPNG, nil
	case "svg", "vector":
		return FormatSVG, nil
	case "pdf", "document":
		return FormatPDF, nil
	default:
		return "", failure.Validation("render.ParseFormat", "unsupported diagram format %q", raw)
	}
}

// Validate fails with a validation error for anything outside Formats.
func (f Format) Validate() error {
	switch f {
	case FormatPNG, FormatSVG, FormatPDF:
		return nil
	default:
		return failure.Validation("render.Format", "unsupported diagram format %q", string(f))
	}
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
