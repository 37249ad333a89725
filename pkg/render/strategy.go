package render

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
)

// Strategy turns a graph into image bytes in one format. A strategy that
// cannot run at all, for example because an external tool is missing, fails
// with failure.KindRendererUnavailable so the chain moves on.
type Strategy interface {
	Name() string
	Render(ctx context.Context, g *models.WorkflowGraph, format Format) ([]byte, error)
}

// Result is the output of a successful chain run.
type Result struct {
	Bytes       []byte
	Format      Format
	ContentType string
	Strategy    string
}

// Chain tries strategies in order and returns the first success.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		logger:     logger.With("module", "render"),
	}
}

// Names lists the configured strategies in the order they are tried.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}

	return names
}

// Render validates format, then runs each strategy until one produces bytes.
// When every strategy fails the error is a RenderError wrapping the last cause.
func (c *Chain) Render(ctx context.Context, g *models.WorkflowGraph, format Format) (*Result, error) {
	const op = "render.Chain"

	err := format.Validate()
	if err != nil {
		return nil, err
	}

	if g == nil || len(g.Steps) == 0 {
		return nil, failure.New(op, failure.KindRender, "graph has no steps")
	}

	if len(c.strategies) == 0 {
		return nil, failure.New(op, failure.KindRender, "no renderer strategy configured")
	}

	var last error

	for _, strategy := range c.strategies {
		err := ctx.Err()
		if err != nil {
			return nil, &failure.Error{Op: op, Kind: failure.KindRender, Message: "rendering cancelled", Err: err}
		}

		out, err := strategy.Render(ctx, g, format)
		if err == nil && len(out) == 0 {
			err = failure.New(op, failure.KindRender, "strategy %s produced no output", strategy.Name())
		}

		if err != nil {
			c.logger.WarnContext(ctx, "renderer strategy failed",
				"strategy", strategy.Name(),
				"format", format,
				"kind", failure.KindOf(err),
				"error", err)

			last = err

			continue
		}

		c.logger.DebugContext(ctx, "diagram rendered",
			"strategy", strategy.Name(),
			"format", format,
			"bytes", len(out))

		return &Result{
			Bytes:       out,
			Format:      format,
			ContentType: format.ContentType(),
			Strategy:    strategy.Name(),
		}, nil
	}

	return nil, &failure.Error{
		Op:      op,
		Kind:    failure.KindRender,
		Message: "all renderer strategies failed (" + strings.Join(c.Names(), ", ") + ")",
		Err:     last,
	}
}

// GraphvizOptions configures the graphviz strategy built by NewStrategies.
type GraphvizOptions struct {
	Binary string
}

// NewStrategies builds strategies by name, in the given order.
func NewStrategies(order []string, opts GraphvizOptions) ([]Strategy, error) {
	strategies := make([]Strategy, 0, len(order))
	seen := make(map[string]bool, len(order))

	for _, raw := range order {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}

		seen[name] = true

		switch name {
		case GraphvizName:
			strategies = append(strategies, NewGraphviz(opts.Binary))
		case BuiltinName:
			strategies = append(strategies, NewBuiltin())
		default:
			return nil, failure.Validation("render.NewStrategies", "unknown renderer strategy %q", raw)
		}
	}

	if len(strategies) == 0 {
		return nil, failure.Validation("render.NewStrategies", "renderer order is empty")
	}

	return strategies, nil
}
