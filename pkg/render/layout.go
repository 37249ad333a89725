package render

import (
	"math"

	"github.com/PFerreria/Concilium/pkg/models"
)

const (
	nodeWidth    = 150.0
	nodeHeight   = 60.0
	circleRadius = 24.0
	columnGap    = 70.0
	rowGap       = 40.0
	margin       = 40.0
	titleHeight  = 30.0
	loopHeight   = 22.0
	arrowLength  = 10.0
	arrowWidth   = 5.0
	maxLabelRune = 22
)

// Point is a canvas coordinate.
type Point struct {
	X, Y float64
}

// Box is a placed step. X and Y are the centre.
type Box struct {
	Step  *models.Step
	Style NodeStyle
	Label string
	X, Y  float64
	W, H  float64
}

// Route is the polyline an edge is drawn along, ending at the target border.
type Route struct {
	Edge   models.Edge
	Points []Point
	Back   bool
}

// Layout places steps left to right by layer. Within a layer steps keep the
// graph's input order, top to bottom.
type Layout struct {
	Title  string
	Width  float64
	Height float64
	Boxes  []Box
	Routes []Route
}

// ComputeLayout positions every step and routes every edge of g.
func ComputeLayout(g *models.WorkflowGraph) *Layout {
	layout := &Layout{Title: g.Title}
	index := make(map[string]int, len(g.Steps))

	rows := 0
	layers := g.LayerCount()

	for layer := 0; layer < layers; layer++ {
		steps := g.StepsInLayer(layer)
		rows = max(rows, len(steps))

		for row, step := range steps {
			style := StyleFor(step.Type)
			w, h := shapeSize(style.Shape)

			index[step.ID] = len(layout.Boxes)
			layout.Boxes = append(layout.Boxes, Box{
				Step:  step,
				Style: style,
				Label: truncate(step.Name),
				X:     margin + float64(layer)*(nodeWidth+columnGap) + nodeWidth/2,
				Y:     margin + titleHeight + float64(row)*(nodeHeight+rowGap) + nodeHeight/2,
				W:     w,
				H:     h,
			})
		}
	}

	layout.Width = 2*margin + float64(layers)*nodeWidth + float64(max(layers-1, 0))*columnGap
	layout.Height = 2*margin + titleHeight + float64(rows)*nodeHeight + float64(max(rows-1, 0))*rowGap

	for _, e := range g.Edges() {
		from, to := layout.Boxes[index[e.From]], layout.Boxes[index[e.To]]
		layout.Routes = append(layout.Routes, Route{
			Edge:   e,
			Points: route(from, to),
			Back:   g.IsBackEdge(e.From, e.To),
		})
	}

	return layout
}

func shapeSize(s Shape) (float64, float64) {
	switch s {
	case ShapeCircle, ShapeDoubleCircle:
		return 2 * circleRadius, 2 * circleRadius
	case ShapeDiamond:
		return nodeWidth * 0.8, nodeHeight
	case ShapeRoundedRect:
		return nodeWidth, nodeHeight
	default:
		return nodeWidth, nodeHeight
	}
}

func route(from, to Box) []Point {
	if from.Step.ID == to.Step.ID {
		top := from.Y - from.H/2
		left, right := from.X-from.W/4, from.X+from.W/4

		return []Point{
			{X: right, Y: top},
			{X: right, Y: top - loopHeight},
			{X: left, Y: top - loopHeight},
			{X: left, Y: top},
		}
	}

	return []Point{
		clip(from, to.X, to.Y),
		clip(to, from.X, from.Y),
	}
}

// clip returns where the segment from the centre of b towards (x, y) leaves
// the bounding box of b.
func clip(b Box, x, y float64) Point {
	dx, dy := x-b.X, y-b.Y
	if dx == 0 && dy == 0 {
		return Point{X: b.X, Y: b.Y}
	}

	t := math.Inf(1)
	if dx != 0 {
		t = math.Min(t, (b.W/2)/math.Abs(dx))
	}

	if dy != 0 {
		t = math.Min(t, (b.H/2)/math.Abs(dy))
	}

	return Point{X: b.X + dx*t, Y: b.Y + dy*t}
}

// arrowHead returns the triangle drawn at tip for a segment arriving from tail.
func arrowHead(tail, tip Point) [3]Point {
	dx, dy := tip.X-tail.X, tip.Y-tail.Y

	length := math.Hypot(dx, dy)
	if length == 0 {
		return [3]Point{tip, tip, tip}
	}

	ux, uy := dx/length, dy/length
	baseX, baseY := tip.X-ux*arrowLength, tip.Y-uy*arrowLength

	return [3]Point{
		tip,
		{X: baseX - uy*arrowWidth, Y: baseY + ux*arrowWidth},
		{X: baseX + uy*arrowWidth, Y: baseY - ux*arrowWidth},
	}
}

// diamond returns the corners of a gateway, clockwise from the top.
func diamond(b Box) [4]Point {
	return [4]Point{
		{X: b.X, Y: b.Y - b.H/2},
		{X: b.X + b.W/2, Y: b.Y},
		{X: b.X, Y: b.Y + b.H/2},
		{X: b.X - b.W/2, Y: b.Y},
	}
}

func truncate(label string) string {
	runes := []rune(label)
	if len(runes) <= maxLabelRune {
		return label
	}

	return string(runes[:maxLabelRune-1]) + "…"
}
