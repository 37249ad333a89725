package render

import "github.com/PFerreria/Concilium/pkg/models"

// Shape is the outline used for a step.
type Shape string

const (
	ShapeCircle       Shape = "circle"
	ShapeDoubleCircle Shape = "doublecircle"
	ShapeRoundedRect  Shape = "roundedrect"
	ShapeDiamond      Shape = "diamond"
)

// Color is an RGB colour.
type Color struct {
	R, G, B uint8
	Hex     string
}

var (
	colorGreen     = Color{R: 0x66, G: 0xBB, B: 0x6A, Hex: "#66BB6A"}
	colorGreenLine = Color{R: 0x2E, G: 0x7D, B: 0x32, Hex: "#2E7D32"}
	colorRed       = Color{R: 0xEF, G: 0x53, B: 0x50, Hex: "#EF5350"}
	colorRedLine   = Color{R: 0xB7, G: 0x1C, B: 0x1C, Hex: "#B71C1C"}
	colorBlue      = Color{R: 0x90, G: 0xCA, B: 0xF9, Hex: "#90CAF9"}
	colorBlueLine  = Color{R: 0x15, G: 0x65, B: 0xC0, Hex: "#1565C0"}
	colorYellow    = Color{R: 0xFF, G: 0xF1, B: 0x76, Hex: "#FFF176"}
	colorAmberLine = Color{R: 0xF9, G: 0xA8, B: 0x25, Hex: "#F9A825"}

	// EdgeColor is used for arrows, TextColor for labels, Background for the canvas.
	EdgeColor  = Color{R: 0x42, G: 0x42, B: 0x42, Hex: "#424242"}
	TextColor  = Color{R: 0x21, G: 0x21, B: 0x21, Hex: "#212121"}
	Background = Color{R: 0xFF, G: 0xFF, B: 0xFF, Hex: "#FFFFFF"}
)

// NodeStyle is the visual vocabulary of one step type. Every strategy draws
// from the same table.
type NodeStyle struct {
	Shape  Shape
	Fill   Color
	Stroke Color
}

// StyleFor returns the style of a step type: start is a green filled circle,
// end a red double circle, task a blue rounded rectangle, gateway a yellow diamond.
func StyleFor(t models.StepType) NodeStyle {
	switch t {
	case models.StepTypeStart:
		return NodeStyle{Shape: ShapeCircle, Fill: colorGreen, Stroke: colorGreenLine}
	case models.StepTypeEnd:
		return NodeStyle{Shape: ShapeDoubleCircle, Fill: colorRed, Stroke: colorRedLine}
	case models.StepTypeGateway:
		return NodeStyle{Shape: ShapeDiamond, Fill: colorYellow, Stroke: colorAmberLine}
	case models.StepTypeTask:
		return NodeStyle{Shape: ShapeRoundedRect, Fill: colorBlue, Stroke: colorBlueLine}
	default:
		return NodeStyle{Shape: ShapeRoundedRect, Fill: colorBlue, Stroke: colorBlueLine}
	}
}
