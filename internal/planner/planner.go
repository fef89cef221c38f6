// Package planner compiles parsed terms into plan trees, rewrites them with
// algebraic identities and renders them for diagnostics.
//
// A Planner is meant to be used for a single request. Compilation and
// optimization are pure: they never touch storage and never mutate their
// input, so separate planners may run concurrently without coordination.
package planner

import (
	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

// Stats counts the rewrites performed by Optimize.
type Stats struct {
	// Visited is the number of plan nodes passed to the optimizer.
	Visited int
	// FiltersEliminated counts filters whose predicate simplified to true.
	FiltersEliminated int
	// FiltersShortCircuited counts filters whose predicate simplified to
	// false and were replaced with an empty array.
	FiltersShortCircuited int
	// PredicatesRewritten counts filter predicates and Eval expressions that
	// Simplify changed.
	PredicatesRewritten int
}

// Planner compiles and optimizes one query.
type Planner struct {
	stats Stats
}

// New returns a planner with zeroed statistics.
func New() *Planner {
	return &Planner{}
}

// Stats returns the counters accumulated by Optimize.
func (p *Planner) Stats() Stats {
	return p.stats
}

// Plan compiles term into a plan tree.
func (p *Planner) Plan(term ast.Term) (PlanNode, error) {
	switch t := term.(type) {
	case *ast.ExprTerm:
		return &Eval{Expr: t.Expr}, nil

	case *ast.Database:
		return &SelectDatabase{Name: t.Name}, nil

	case *ast.DatabaseCreate:
		return &CreateDatabase{Name: t.Name}, nil

	case *ast.DatabaseDrop:
		return &DropDatabase{Name: t.Name}, nil

	case *ast.DatabaseList:
		return &ListDatabases{}, nil

	case *ast.Table:
		return &ScanTable{DB: t.DB, Name: t.Name}, nil

	case *ast.TableCreate:
		return &CreateTable{DB: t.DB, Name: t.Name}, nil

	case *ast.TableDrop:
		return &DropTable{DB: t.DB, Name: t.Name}, nil

	case *ast.TableList:
		return &ListTables{DB: t.DB}, nil

	case *ast.Get:
		return p.planGet(t)

	case *ast.Filter:
		expr, ok := t.Predicate.(*ast.ExprTerm)
		if !ok {
			return nil, &PlanError{Kind: ErrInvalidPredicate, Term: t.Predicate}
		}
		source, err := p.Plan(t.Source)
		if err != nil {
			return nil, err
		}
		return &Filter{Source: source, Predicate: expr.Expr, OptArgs: t.OptArgs}, nil

	case *ast.Insert:
		table, err := p.Plan(t.Table)
		if err != nil {
			return nil, err
		}
		return &Insert{Table: table, Documents: t.Documents, OptArgs: t.OptArgs}, nil

	case *ast.Delete:
		source, err := p.Plan(t.Source)
		if err != nil {
			return nil, err
		}
		return &Delete{Source: source, OptArgs: t.OptArgs}, nil
	}

	return nil, &PlanError{Kind: ErrUnsupportedTerm, Term: term}
}

func (p *Planner) planGet(t *ast.Get) (PlanNode, error) {
	var db, table string
	if ref, ok := t.Table.(*ast.Table); ok {
		db, table = ref.DB, ref.Name
	} else {
		// Non-literal table references are named after the rendering of
		// their compiled plan. Clients depend on the resulting names.
		sub, err := p.Plan(t.Table)
		if err != nil {
			return nil, err
		}
		table = sub.String()
	}

	key, ok := t.Key.(ast.String)
	if !ok {
		return nil, &PlanError{Kind: ErrInvalidGetTerm, Term: &ast.DatumTerm{Value: t.Key}}
	}

	return &GetByKey{DB: db, Table: table, Key: key, OptArgs: t.OptArgs}, nil
}
