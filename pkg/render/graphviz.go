package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/emicklei/dot"
)

const GraphvizName = "graphviz"

// Graphviz renders through the external `dot` program.
type Graphviz struct {
	binary   string
	lookPath func(string) (string, error)
}

func NewGraphviz(binary string) *Graphviz {
	if binary == "" {
		binary = "dot"
	}

	return &Graphviz{binary: binary, lookPath: exec.LookPath}
}

func (g *Graphviz) Name() string {
	return GraphvizName
}

func (g *Graphviz) Render(ctx context.Context, wg *models.WorkflowGraph, format Format) ([]byte, error) {
	const op = "render.graphviz"

	path, err := g.lookPath(g.binary)
	if err != nil {
		return nil, &failure.Error{Op: op, Kind: failure.KindRendererUnavailable, Message: "graphviz binary not found", Err: err}
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, path, "-T"+string(format))
	cmd.Stdin = strings.NewReader(ToDOT(wg))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err != nil {
		return nil, &failure.Error{
			Op:      op,
			Kind:    failure.KindRender,
			Message: strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}

	return stdout.Bytes(), nil
}

// ToDOT describes g in the DOT language. Each layer is a rank=same subgraph
// so columns line up left to right, and back-edges are dashed and excluded
// from ranking.
func ToDOT(wg *models.WorkflowGraph) string {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")
	g.Attr("label", wg.Title)
	g.Attr("labelloc", "t")
	g.Attr("fontname", "Helvetica")

	nodes := make(map[string]dot.Node, len(wg.Steps))

	for layer := 0; layer < wg.LayerCount(); layer++ {
		sub := g.Subgraph(fmt.Sprintf("layer_%d", layer))
		sub.Attr("rank", "same")

		for _, step := range wg.StepsInLayer(layer) {
			nodes[step.ID] = styleNode(sub.Node(step.ID).Label(step.Name), StyleFor(step.Type))
		}
	}

	for _, e := range wg.Edges() {
		edge := g.Edge(nodes[e.From], nodes[e.To]).Attr("color", EdgeColor.Hex)
		if wg.IsBackEdge(e.From, e.To) {
			edge.Attr("style", "dashed").Attr("constraint", "false")
		}
	}

	return g.String()
}

func styleNode(n dot.Node, style NodeStyle) dot.Node {
	n.Attr("fillcolor", style.Fill.Hex).
		Attr("color", style.Stroke.Hex).
		Attr("fontname", "Helvetica")

	switch style.Shape {
	case ShapeCircle:
		return n.Attr("shape", "circle").Attr("style", "filled")
	case ShapeDoubleCircle:
		return n.Attr("shape", "doublecircle").Attr("style", "filled")
	case ShapeDiamond:
		return n.Attr("shape", "diamond").Attr("style", "filled")
	case ShapeRoundedRect:
		return n.Attr("shape", "box").Attr("style", "rounded,filled")
	default:
		return n.Attr("shape", "box").Attr("style", "rounded,filled")
	}
}
