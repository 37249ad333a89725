package render

import (
	"bytes"
	"context"
	"math"
	"time"

	svg "github.com/ajstarks/svgo"
	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
)

const BuiltinName = "builtin"

// pdfEpoch is stamped as creation date so identical graphs give identical PDFs.
var pdfEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Builtin draws diagrams in-process from the computed Layout. It needs no
// external tools and supports every Format.
type Builtin struct{}

func NewBuiltin() *Builtin {
	return &Builtin{}
}

func (b *Builtin) Name() string {
	return BuiltinName
}

func (b *Builtin) Render(ctx context.Context, g *models.WorkflowGraph, format Format) ([]byte, error) {
	const op = "render.builtin"

	err := ctx.Err()
	if err != nil {
		return nil, failure.Wrap(op, failure.KindRender, err)
	}

	layout := ComputeLayout(g)

	var out []byte

	switch format {
	case FormatSVG:
		out = drawSVG(layout)
	case FormatPNG:
		out, err = drawPNG(layout)
	case FormatPDF:
		out, err = drawPDF(layout)
	default:
		return nil, failure.New(op, failure.KindRender, "unsupported format %q", string(format))
	}

	if err != nil {
		return nil, failure.Wrap(op, failure.KindRender, err)
	}

	return out, nil
}

func drawSVG(l *Layout) []byte {
	var buf bytes.Buffer

	canvas := svg.New(&buf)
	canvas.Start(px(l.Width), px(l.Height))
	canvas.Title(l.Title)

	canvas.Def()
	canvas.Marker("arrow", int(arrowLength), int(arrowWidth), int(arrowLength), int(2*arrowWidth), `orient="auto"`)
	canvas.Path("M0,0 L10,5 L0,10 z", "fill:"+EdgeColor.Hex)
	canvas.MarkerEnd()
	canvas.DefEnd()

	canvas.Rect(0, 0, px(l.Width), px(l.Height), "fill:"+Background.Hex)
	canvas.Text(px(l.Width/2), px(margin), l.Title,
		"text-anchor:middle;font-family:Helvetica,Arial,sans-serif;font-size:16px;fill:"+TextColor.Hex)

	for _, r := range l.Routes {
		xs, ys := make([]int, len(r.Points)), make([]int, len(r.Points))
		for i, p := range r.Points {
			xs[i], ys[i] = px(p.X), px(p.Y)
		}

		style := "fill:none;stroke-width:1.5;stroke:" + EdgeColor.Hex
		if r.Back {
			style += ";stroke-dasharray:6,4"
		}

		canvas.Polyline(xs, ys, style, `marker-end="url(#arrow)"`)
	}

	for _, box := range l.Boxes {
		style := "stroke-width:2;fill:" + box.Style.Fill.Hex + ";stroke:" + box.Style.Stroke.Hex
		cx, cy := px(box.X), px(box.Y)

		switch box.Style.Shape {
		case ShapeCircle:
			canvas.Circle(cx, cy, px(box.W/2), style)
		case ShapeDoubleCircle:
			canvas.Circle(cx, cy, px(box.W/2), style)
			canvas.Circle(cx, cy, px(box.W/2-4), "fill:none;stroke-width:2;stroke:"+box.Style.Stroke.Hex)
		case ShapeDiamond:
			corners := diamond(box)
			xs, ys := make([]int, 0, 4), make([]int, 0, 4)

			for _, p := range corners {
				xs, ys = append(xs, px(p.X)), append(ys, px(p.Y))
			}

			canvas.Polygon(xs, ys, style)
		case ShapeRoundedRect:
			canvas.Roundrect(px(box.X-box.W/2), px(box.Y-box.H/2), px(box.W), px(box.H), 10, 10, style)
		}

		labelY := cy + 4
		if box.Style.Shape == ShapeCircle || box.Style.Shape == ShapeDoubleCircle {
			labelY = px(box.Y+box.H/2) + 16
		}

		canvas.Text(cx, labelY, box.Label,
			"text-anchor:middle;font-family:Helvetica,Arial,sans-serif;font-size:12px;fill:"+TextColor.Hex)
	}

	canvas.End()

	return buf.Bytes()
}

func drawPNG(l *Layout) ([]byte, error) {
	dc := gg.NewContext(px(l.Width), px(l.Height))
	dc.SetHexColor(Background.Hex)
	dc.Clear()

	dc.SetHexColor(TextColor.Hex)
	dc.DrawStringAnchored(l.Title, l.Width/2, margin-4, 0.5, 0.5)

	for _, r := range l.Routes {
		dc.SetHexColor(EdgeColor.Hex)
		dc.SetLineWidth(1.5)

		if r.Back {
			dc.SetDash(6, 4)
		}

		for i := 1; i < len(r.Points); i++ {
			dc.DrawLine(r.Points[i-1].X, r.Points[i-1].Y, r.Points[i].X, r.Points[i].Y)
		}

		dc.Stroke()
		dc.SetDash()

		head := arrowHead(r.Points[len(r.Points)-2], r.Points[len(r.Points)-1])
		dc.MoveTo(head[0].X, head[0].Y)
		dc.LineTo(head[1].X, head[1].Y)
		dc.LineTo(head[2].X, head[2].Y)
		dc.ClosePath()
		dc.Fill()
	}

	for _, box := range l.Boxes {
		switch box.Style.Shape {
		case ShapeCircle, ShapeDoubleCircle:
			dc.DrawCircle(box.X, box.Y, box.W/2)
		case ShapeDiamond:
			corners := diamond(box)
			dc.MoveTo(corners[0].X, corners[0].Y)

			for _, p := range corners[1:] {
				dc.LineTo(p.X, p.Y)
			}

			dc.ClosePath()
		case ShapeRoundedRect:
			dc.DrawRoundedRectangle(box.X-box.W/2, box.Y-box.H/2, box.W, box.H, 10)
		}

		dc.SetHexColor(box.Style.Fill.Hex)
		dc.FillPreserve()
		dc.SetHexColor(box.Style.Stroke.Hex)
		dc.SetLineWidth(2)
		dc.Stroke()

		labelY := box.Y
		if box.Style.Shape == ShapeDoubleCircle {
			dc.DrawCircle(box.X, box.Y, box.W/2-4)
			dc.Stroke()
		}

		if box.Style.Shape == ShapeCircle || box.Style.Shape == ShapeDoubleCircle {
			labelY = box.Y + box.H/2 + 12
		}

		dc.SetHexColor(TextColor.Hex)
		dc.DrawStringAnchored(box.Label, box.X, labelY, 0.5, 0.5)
	}

	var buf bytes.Buffer

	err := dc.EncodePNG(&buf)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func drawPDF(l *Layout) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: l.Width, Ht: l.Height},
	})
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetModificationDate(pdfEpoch)
	pdf.SetTitle(l.Title, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 14)
	setText(pdf, TextColor)
	centerText(pdf, tr(l.Title), l.Width/2, margin)

	for _, r := range l.Routes {
		setDraw(pdf, EdgeColor)
		setFill(pdf, EdgeColor)
		pdf.SetLineWidth(1.2)

		if r.Back {
			pdf.SetDashPattern([]float64{6, 4}, 0)
		}

		for i := 1; i < len(r.Points); i++ {
			pdf.Line(r.Points[i-1].X, r.Points[i-1].Y, r.Points[i].X, r.Points[i].Y)
		}

		pdf.SetDashPattern([]float64{}, 0)

		head := arrowHead(r.Points[len(r.Points)-2], r.Points[len(r.Points)-1])
		pdf.Polygon([]fpdf.PointType{
			{X: head[0].X, Y: head[0].Y},
			{X: head[1].X, Y: head[1].Y},
			{X: head[2].X, Y: head[2].Y},
		}, "F")
	}

	pdf.SetFont("Helvetica", "", 10)

	for _, box := range l.Boxes {
		setFill(pdf, box.Style.Fill)
		setDraw(pdf, box.Style.Stroke)
		pdf.SetLineWidth(1.5)

		labelY := box.Y + 3

		switch box.Style.Shape {
		case ShapeCircle:
			pdf.Circle(box.X, box.Y, box.W/2, "FD")
			labelY = box.Y + box.H/2 + 12
		case ShapeDoubleCircle:
			pdf.Circle(box.X, box.Y, box.W/2, "FD")
			pdf.Circle(box.X, box.Y, box.W/2-4, "D")
			labelY = box.Y + box.H/2 + 12
		case ShapeDiamond:
			corners := diamond(box)
			points := make([]fpdf.PointType, 0, len(corners))

			for _, p := range corners {
				points = append(points, fpdf.PointType{X: p.X, Y: p.Y})
			}

			pdf.Polygon(points, "FD")
		case ShapeRoundedRect:
			pdf.RoundedRect(box.X-box.W/2, box.Y-box.H/2, box.W, box.H, 8, "1234", "FD")
		}

		setText(pdf, TextColor)
		centerText(pdf, tr(box.Label), box.X, labelY)
	}

	var buf bytes.Buffer

	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func centerText(pdf *fpdf.Fpdf, s string, x, y float64) {
	pdf.Text(x-pdf.GetStringWidth(s)/2, y, s)
}

func setFill(pdf *fpdf.Fpdf, c Color) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}

func setDraw(pdf *fpdf.Fpdf, c Color) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setText(pdf *fpdf.Fpdf, c Color) {
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
}

func px(v float64) int {
	return int(math.Round(v))
}
