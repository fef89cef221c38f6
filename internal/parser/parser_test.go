package parser_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
	"github.com/kartikbazzad/bunbase/bunquery/internal/parser"
	r "github.com/kartikbazzad/bunbase/bunquery/pkg/client"
)

func parse(t *testing.T, term r.Term) ast.Term {
	t.Helper()
	got, err := parser.New().Parse(term.Wire())
	if err != nil {
		t.Fatalf("Parse(%s): %v", term, err)
	}
	return got
}

func TestParseAdministrative(t *testing.T) {
	cases := []struct {
		in   r.Term
		want ast.Term
	}{
		{r.DB("app"), &ast.Database{Name: "app"}},
		{r.DBCreate("app"), &ast.DatabaseCreate{Name: "app"}},
		{r.DBDrop("app"), &ast.DatabaseDrop{Name: "app"}},
		{r.DBList(), &ast.DatabaseList{}},
		{r.Table("users"), &ast.Table{Name: "users"}},
		{r.DB("app").Table("users"), &ast.Table{DB: "app", Name: "users"}},
		{r.DB("app").TableCreate("users"), &ast.TableCreate{DB: "app", Name: "users"}},
		{r.TableCreate("users"), &ast.TableCreate{Name: "users"}},
		{r.DB("app").TableDrop("users"), &ast.TableDrop{DB: "app", Name: "users"}},
		{r.DB("app").TableList(), &ast.TableList{DB: "app"}},
		{r.TableList(), &ast.TableList{}},
	}

	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, parse(t, tc.in)); diff != "" {
			t.Errorf("Parse(%s) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestParseGetFilterDelete(t *testing.T) {
	users := r.DB("app").Table("users")

	got := parse(t, users.Get("u1").Opt(r.OptArgs{"read_mode": "outdated"}))
	want := ast.Term(&ast.Get{
		Table:   &ast.Table{DB: "app", Name: "users"},
		Key:     ast.String("u1"),
		OptArgs: ast.OptArgs{{Key: "read_mode", Value: ast.String("outdated")}},
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("get mismatch (-want +got):\n%s", diff)
	}

	got = parse(t, users.Filter(r.Row("age").Gt(30).And(r.Row("active").Eq(true), r.Row("name").Ne("x"))))
	want = &ast.Filter{
		Source: &ast.Table{DB: "app", Name: "users"},
		Predicate: &ast.ExprTerm{Expr: ast.Binary(ast.OpAnd,
			ast.Binary(ast.OpAnd,
				ast.Binary(ast.OpGt, ast.FieldRef("age"), ast.Const(ast.Integer(30))),
				ast.Binary(ast.OpEq, ast.FieldRef("active"), ast.Const(ast.Bool(true)))),
			ast.Binary(ast.OpNe, ast.FieldRef("name"), ast.Const(ast.String("x"))))},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}

	got = parse(t, users.Filter(true).Delete())
	want = &ast.Delete{Source: &ast.Filter{
		Source:    &ast.Table{DB: "app", Name: "users"},
		Predicate: &ast.ExprTerm{Expr: ast.Const(ast.Bool(true))},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delete mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFilterWithTablePredicate(t *testing.T) {
	got := parse(t, r.Table("users").Filter(r.Table("other")))
	f, ok := got.(*ast.Filter)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if _, ok := f.Predicate.(*ast.Table); !ok {
		t.Errorf("predicate = %s, want the table term passed through", f.Predicate)
	}
}

func TestParseInsert(t *testing.T) {
	single := parse(t, r.Table("t").Insert(map[string]interface{}{"id": "a", "tags": []string{"x", "y"}}))
	want := ast.Term(&ast.Insert{
		Table: &ast.Table{Name: "t"},
		Documents: []ast.Datum{ast.Object{
			{Key: "id", Value: ast.String("a")},
			{Key: "tags", Value: ast.Array{ast.String("x"), ast.String("y")}},
		}},
	})
	if diff := cmp.Diff(want, single); diff != "" {
		t.Errorf("single mismatch (-want +got):\n%s", diff)
	}

	many := parse(t, r.Table("t").Insert([]map[string]interface{}{{"id": "a"}, {"id": "b"}}))
	if ins := many.(*ast.Insert); len(ins.Documents) != 2 {
		t.Errorf("documents = %d, want 2", len(ins.Documents))
	}
}

func TestParseExpressions(t *testing.T) {
	cases := []struct {
		in   r.Term
		want ast.Expr
	}{
		{r.Expr(1).Add(2).Add(3), ast.Binary(ast.OpAdd, ast.Binary(ast.OpAdd, ast.Const(ast.Integer(1)), ast.Const(ast.Integer(2))), ast.Const(ast.Integer(3)))},
		{r.Expr(true).Not(), ast.Not(ast.Const(ast.Bool(true)))},
		{r.Row("a", "b"), ast.FieldRef("a", "b")},
		{r.Expr(6).Div(2).Sub(1).Mul(4), ast.Binary(ast.OpMul, ast.Binary(ast.OpSub, ast.Binary(ast.OpDiv, ast.Const(ast.Integer(6)), ast.Const(ast.Integer(2))), ast.Const(ast.Integer(1))), ast.Const(ast.Integer(4)))},
		{r.Row("x").Le(1).Or(r.Row("x").Ge(9)), ast.Binary(ast.OpOr, ast.Binary(ast.OpLe, ast.FieldRef("x"), ast.Const(ast.Integer(1))), ast.Binary(ast.OpGe, ast.FieldRef("x"), ast.Const(ast.Integer(9))))},
		{r.Row("tags").Eq([]string{"a"}), ast.Binary(ast.OpEq, ast.FieldRef("tags"), ast.Const(ast.Array{ast.String("a")}))},
		{r.Row("x").Lt(1), ast.Binary(ast.OpLt, ast.FieldRef("x"), ast.Const(ast.Integer(1)))},
	}

	for _, tc := range cases {
		got := parse(t, tc.in)
		want := ast.Term(&ast.ExprTerm{Expr: tc.want})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parse(%s) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestParseDatum(t *testing.T) {
	got := parse(t, r.Expr(map[string]interface{}{"a": 1}))
	want := ast.Term(&ast.DatumTerm{Value: ast.Object{{Key: "a", Value: ast.Integer(1)}}})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("object mismatch (-want +got):\n%s", diff)
	}

	got = parse(t, r.Expr([]interface{}{1, "x"}))
	want = &ast.DatumTerm{Value: ast.Array{ast.Integer(1), ast.String("x")}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("array mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	term := func(typ parser.TermType, args ...ast.Datum) ast.Datum {
		return ast.Array{ast.Integer(typ), ast.Array(args)}
	}

	cases := []struct {
		name string
		in   ast.Datum
		want error
	}{
		{"raw array", ast.Array{ast.String("a"), ast.Array{}}, parser.ErrMalformedTerm},
		{"short array", ast.Array{ast.Integer(1)}, parser.ErrMalformedTerm},
		{"args not array", ast.Array{ast.Integer(int64(parser.TermDB)), ast.String("x")}, parser.ErrMalformedTerm},
		{"optargs not object", ast.Array{ast.Integer(int64(parser.TermDBList)), ast.Array{}, ast.Integer(1)}, parser.ErrMalformedTerm},
		{"unknown type", term(999), parser.ErrUnknownTermType},
		{"db arity", term(parser.TermDB), parser.ErrArity},
		{"db name type", term(parser.TermDB, ast.Integer(1)), parser.ErrMalformedTerm},
		{"table db not db", term(parser.TermTable, ast.String("x"), ast.String("t")), parser.ErrMalformedTerm},
		{"eq arity", term(parser.TermEq, ast.Integer(1)), parser.ErrArity},
		{"field path type", term(parser.TermGetField, ast.Integer(1)), parser.ErrMalformedTerm},
		{"field empty", term(parser.TermGetField), parser.ErrArity},
		{"table in expression", term(parser.TermEq, term(parser.TermTable, ast.String("t")), ast.Integer(1)), parser.ErrMalformedTerm},
		{"insert scalar", term(parser.TermInsert, term(parser.TermTable, ast.String("t")), ast.Integer(1)), parser.ErrMalformedTerm},
		{"nested raw array", ast.Object{{Key: "a", Value: ast.Array{ast.Integer(1), ast.Integer(2)}}}, parser.ErrMalformedTerm},
	}

	for _, tc := range cases {
		_, err := parser.New().Parse(tc.in)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}
