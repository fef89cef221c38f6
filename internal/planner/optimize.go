package planner

import (
	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

// Optimize returns a rewritten copy of plan. It cannot fail.
//
// Filters are simplified; a filter whose predicate becomes true is replaced
// by its source, and one whose predicate becomes false is replaced by an
// empty array without looking at its source. Insert and Delete optimize their
// child. Eval simplifies its expression. All other nodes are returned as is.
func (p *Planner) Optimize(plan PlanNode) PlanNode {
	p.stats.Visited++

	switch n := plan.(type) {
	case *Filter:
		predicate := p.simplify(n.Predicate)
		if ast.IsBool(predicate, false) {
			p.stats.FiltersShortCircuited++
			return &Constant{Value: ast.Array{}}
		}

		source := p.Optimize(n.Source)
		if ast.IsBool(predicate, true) {
			p.stats.FiltersEliminated++
			return source
		}
		return &Filter{Source: source, Predicate: predicate, OptArgs: n.OptArgs}

	case *Insert:
		return &Insert{Table: p.Optimize(n.Table), Documents: n.Documents, OptArgs: n.OptArgs}

	case *Delete:
		return &Delete{Source: p.Optimize(n.Source), OptArgs: n.OptArgs}

	case *Eval:
		return &Eval{Expr: p.simplify(n.Expr)}
	}

	// GetByKey is a point lookup; the remaining variants are already minimal.
	return plan
}

func (p *Planner) simplify(e ast.Expr) ast.Expr {
	out, changed := simplify(e)
	if changed {
		p.stats.PredicatesRewritten++
	}
	return out
}
