package plugin

import (
	"context"
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/criterion"
	"github.com/vk/benchgrid/internal/errdefs"
)

// ExprName is the name reported by expression filters.
const ExprName = "expr"

var exprFunctions = map[string]function.Function{
	"min":   stdlib.MinFunc,
	"max":   stdlib.MaxFunc,
	"ceil":  stdlib.CeilFunc,
	"floor": stdlib.FloorFunc,
	"abs":   stdlib.AbsoluteFunc,
}

// Expr admits the combinations for which a boolean expression holds, e.g.
// `n_mpi * n_omp <= nodes * cores_per_node`.
//
// Criteria referenced by the expression but absent from a combination
// evaluate to 1, as do the built-in plugins.
type Expr struct {
	source string
	expr   hclsyntax.Expression
	vars   []string
}

// NewExpr parses src. Unknown functions are rejected here rather than on the
// first evaluation.
func NewExpr(src string) (*Expr, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "runtime.filter", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, errdefs.Config(errors.Wrapf(diags, "parse filter %q", src))
	}

	var unknown []string
	_ = hclsyntax.VisitAll(expr, func(n hclsyntax.Node) hcl.Diagnostics {
		if call, ok := n.(*hclsyntax.FunctionCallExpr); ok {
			if _, known := exprFunctions[call.Name]; !known {
				unknown = append(unknown, call.Name)
			}
		}
		return nil
	})
	if len(unknown) > 0 {
		return nil, errdefs.Configf("filter %q calls unknown function(s) %v", src, unknown)
	}

	seen := map[string]struct{}{}
	var vars []string
	for _, t := range expr.Variables() {
		name := t.RootName()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return &Expr{source: src, expr: expr, vars: vars}, nil
}

func (e *Expr) Name() string { return ExprName }

// Variables lists the root names the expression reads.
func (e *Expr) Variables() []string { return e.vars }

func (e *Expr) String() string { return e.source }

// Admit implements Plugin.
func (e *Expr) Admit(_ context.Context, c criterion.Combination, m config.Machine) (bool, error) {
	vars := map[string]cty.Value{
		"nodes":          cty.NumberIntVal(int64(m.Nodes)),
		"cores_per_node": cty.NumberIntVal(int64(m.CoresPerNode)),
		"concurrent_run": cty.NumberIntVal(int64(m.ConcurrentRun)),
	}
	for _, name := range e.vars {
		if _, ok := vars[name]; ok {
			continue
		}
		v, ok := c.Get(name)
		switch {
		case !ok:
			vars[name] = cty.NumberIntVal(1)
		case v.IsNumeric():
			f, _ := v.Number()
			vars[name] = cty.NumberFloatVal(f)
		default:
			vars[name] = cty.StringVal(v.String())
		}
	}

	val, diags := e.expr.Value(&hcl.EvalContext{Variables: vars, Functions: exprFunctions})
	if diags.HasErrors() {
		return false, errors.Wrapf(diags, "evaluate %q", e.source)
	}
	b, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("filter %q must yield a boolean, got %s", e.source, val.Type().FriendlyName())
	}
	if b.IsNull() || !b.IsKnown() {
		return false, fmt.Errorf("filter %q yielded no value", e.source)
	}
	return b.True(), nil
}
