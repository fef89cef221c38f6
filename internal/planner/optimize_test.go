package planner

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

func TestOptimizeFilterTrueIsEliminated(t *testing.T) {
	sources := []PlanNode{
		&ScanTable{Name: "users"},
		&GetByKey{Table: "users", Key: ast.String("a")},
		&Filter{Source: &ScanTable{Name: "users"}, Predicate: ast.Binary(ast.OpOr, ast.FieldRef("a"), ast.Const(ast.Bool(false)))},
		&Constant{Value: ast.Array{ast.Integer(1)}},
	}

	for _, src := range sources {
		p := New()
		got := p.Optimize(&Filter{
			Source:    src,
			Predicate: ast.Binary(ast.OpAnd, ast.Const(ast.Bool(true)), ast.Not(ast.Const(ast.Bool(false)))),
		})
		want := New().Optimize(src)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("source %s mismatch (-want +got):\n%s", src, diff)
		}
		if p.Stats().FiltersEliminated == 0 {
			t.Errorf("source %s: filter not counted as eliminated", src)
		}
	}
}

func TestOptimizeFilterFalseShortCircuits(t *testing.T) {
	// The source is a deep tree; none of it may be visited.
	source := &Filter{
		Source: &Filter{
			Source:    &ScanTable{Name: "users"},
			Predicate: ast.FieldRef("a"),
		},
		Predicate: ast.FieldRef("b"),
	}

	p := New()
	got := p.Optimize(&Filter{
		Source:    source,
		Predicate: ast.Binary(ast.OpAnd, ast.FieldRef("x"), ast.Const(ast.Bool(false))),
	})

	want := &Constant{Value: ast.Array{}}
	if diff := cmp.Diff(PlanNode(want), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if st := p.Stats(); st.Visited != 1 || st.FiltersShortCircuited != 1 {
		t.Errorf("stats = %+v, want only the outer filter visited", st)
	}
}

func TestOptimizeFilterKept(t *testing.T) {
	pred := ast.Binary(ast.OpAnd, ast.Const(ast.Bool(true)), ast.Binary(ast.OpGt, ast.FieldRef("age"), ast.Const(ast.Integer(3))))
	in := &Filter{
		Source:    &Filter{Source: &ScanTable{Name: "users"}, Predicate: ast.Const(ast.Bool(true))},
		Predicate: pred,
		OptArgs:   ast.OptArgs{{Key: "default", Value: ast.Bool(false)}},
	}

	got := New().Optimize(in)
	want := &Filter{
		Source:    &ScanTable{Name: "users"},
		Predicate: ast.Binary(ast.OpGt, ast.FieldRef("age"), ast.Const(ast.Integer(3))),
		OptArgs:   ast.OptArgs{{Key: "default", Value: ast.Bool(false)}},
	}
	if diff := cmp.Diff(PlanNode(want), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// The input tree is not rewritten in place.
	if _, ok := in.Source.(*Filter); !ok || in.Predicate != pred {
		t.Errorf("input was mutated: %s", in)
	}
}

func TestOptimizeInsertDelete(t *testing.T) {
	docs := []ast.Datum{ast.Object{{Key: "id", Value: ast.String("1")}}}
	got := New().Optimize(&Insert{
		Table:     &Filter{Source: &ScanTable{Name: "t"}, Predicate: ast.Const(ast.Bool(true))},
		Documents: docs,
	})
	want := PlanNode(&Insert{Table: &ScanTable{Name: "t"}, Documents: docs})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("insert mismatch (-want +got):\n%s", diff)
	}

	got = New().Optimize(&Delete{
		Source: &Filter{Source: &ScanTable{Name: "t"}, Predicate: ast.Const(ast.Bool(false))},
	})
	want = &Delete{Source: &Constant{Value: ast.Array{}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delete mismatch (-want +got):\n%s", diff)
	}
}

func TestOptimizeEvalAndPassThrough(t *testing.T) {
	got := New().Optimize(&Eval{Expr: ast.Not(ast.Const(ast.Bool(true)))})
	if diff := cmp.Diff(PlanNode(&Eval{Expr: ast.Const(ast.Bool(false))}), got); diff != "" {
		t.Errorf("eval mismatch (-want +got):\n%s", diff)
	}

	unchanged := []PlanNode{
		&SelectDatabase{Name: "a"},
		&CreateDatabase{Name: "a"},
		&DropDatabase{Name: "a"},
		&ListDatabases{},
		&ScanTable{DB: "a", Name: "t"},
		&CreateTable{DB: "a", Name: "t"},
		&DropTable{DB: "a", Name: "t"},
		&ListTables{DB: "a"},
		&GetByKey{DB: "a", Table: "t", Key: ast.String("k")},
		&Constant{Value: ast.Null{}},
	}
	for _, n := range unchanged {
		if got := New().Optimize(n); got != n {
			t.Errorf("Optimize(%s) = %s, want the same node", n, got)
		}
	}
}

func TestOptimizeCountsRewrittenPredicates(t *testing.T) {
	gt := ast.Binary(ast.OpGt, ast.FieldRef("age"), ast.Const(ast.Integer(3)))

	cases := []struct {
		name string
		in   PlanNode
		want Stats
	}{
		{
			name: "untouched predicate",
			in:   &Filter{Source: &ScanTable{Name: "t"}, Predicate: gt},
			want: Stats{Visited: 2},
		},
		{
			name: "constant predicate is not a rewrite",
			in:   &Filter{Source: &ScanTable{Name: "t"}, Predicate: ast.Const(ast.Bool(true))},
			want: Stats{Visited: 2, FiltersEliminated: 1},
		},
		{
			name: "identity removed",
			in:   &Filter{Source: &ScanTable{Name: "t"}, Predicate: ast.Binary(ast.OpAnd, gt, ast.Const(ast.Bool(true)))},
			want: Stats{Visited: 2, PredicatesRewritten: 1},
		},
		{
			name: "nested filters",
			in: &Filter{
				Source:    &Filter{Source: &ScanTable{Name: "t"}, Predicate: ast.Binary(ast.OpOr, gt, ast.Const(ast.Bool(false)))},
				Predicate: ast.Not(ast.Not(ast.Const(ast.Bool(false)))),
			},
			want: Stats{Visited: 1, FiltersShortCircuited: 1, PredicatesRewritten: 1},
		},
		{
			name: "eval",
			in:   &Eval{Expr: ast.Not(ast.Const(ast.Bool(true)))},
			want: Stats{Visited: 1, PredicatesRewritten: 1},
		},
	}

	for _, tc := range cases {
		p := New()
		p.Optimize(tc.in)
		if diff := cmp.Diff(tc.want, p.Stats()); diff != "" {
			t.Errorf("%s: stats mismatch (-want +got):\n%s", tc.name, diff)
		}
	}
}
