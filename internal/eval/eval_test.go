package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
	"github.com/kartikbazzad/bunbase/bunquery/internal/planner"
	"github.com/kartikbazzad/bunbase/bunquery/internal/storage"
)

func setup(t *testing.T) (*Evaluator, storage.Backend) {
	t.Helper()
	ctx := context.Background()
	b := storage.NewMemory()
	if err := b.CreateDatabase(ctx, "test"); err != nil {
		t.Fatal(err)
	}
	if err := b.CreateTable(ctx, "test", "users"); err != nil {
		t.Fatal(err)
	}
	users := []ast.Object{
		{{Key: "id", Value: ast.String("u1")}, {Key: "age", Value: ast.Integer(25)}, {Key: "name", Value: ast.String("ann")}},
		{{Key: "id", Value: ast.String("u2")}, {Key: "age", Value: ast.Integer(40)}, {Key: "name", Value: ast.String("bob")}},
		{{Key: "id", Value: ast.String("u3")}, {Key: "name", Value: ast.String("cid")}},
	}
	for _, u := range users {
		id, _ := u.Get("id")
		if err := b.Insert(ctx, "test", "users", string(id.(ast.String)), u); err != nil {
			t.Fatal(err)
		}
	}
	return New(b, "test"), b
}

func mustEval(t *testing.T, e *Evaluator, plan planner.PlanNode) ast.Datum {
	t.Helper()
	res, err := e.Eval(context.Background(), plan)
	if err != nil {
		t.Fatalf("Eval(%s): %v", plan, err)
	}
	return res.Result
}

func ids(t *testing.T, d ast.Datum) []string {
	t.Helper()
	arr, ok := d.(ast.Array)
	if !ok {
		t.Fatalf("result is %s, want array", ast.TypeName(d))
	}
	out := make([]string, len(arr))
	for i, doc := range arr {
		id, _ := doc.(ast.Object).Get("id")
		out[i] = string(id.(ast.String))
	}
	return out
}

func TestAdministrative(t *testing.T) {
	e, _ := setup(t)

	if got := mustEval(t, e, &planner.CreateDatabase{Name: "app"}); !ast.Equal(got, counter("created", 1)) {
		t.Errorf("CreateDatabase = %s", got)
	}
	if got := mustEval(t, e, &planner.CreateTable{DB: "app", Name: "t"}); !ast.Equal(got, counter("created", 1)) {
		t.Errorf("CreateTable = %s", got)
	}
	if got := mustEval(t, e, &planner.ListDatabases{}); !ast.Equal(got, ast.Array{ast.String("test"), ast.String("app")}) {
		t.Errorf("ListDatabases = %s", got)
	}
	if got := mustEval(t, e, &planner.ListTables{}); !ast.Equal(got, ast.Array{ast.String("users")}) {
		t.Errorf("ListTables on default db = %s", got)
	}

	want := ast.Object{{Key: "name", Value: ast.String("app")}, {Key: "tables", Value: ast.Array{ast.String("t")}}}
	if got := mustEval(t, e, &planner.SelectDatabase{Name: "app"}); !ast.Equal(got, want) {
		t.Errorf("SelectDatabase = %s", got)
	}

	if got := mustEval(t, e, &planner.DropTable{DB: "app", Name: "t"}); !ast.Equal(got, counter("dropped", 1)) {
		t.Errorf("DropTable = %s", got)
	}
	if got := mustEval(t, e, &planner.DropDatabase{Name: "app"}); !ast.Equal(got, counter("dropped", 1)) {
		t.Errorf("DropDatabase = %s", got)
	}

	_, err := e.Eval(context.Background(), &planner.DropDatabase{Name: "app"})
	if !errors.Is(err, storage.ErrDatabaseNotFound) {
		t.Errorf("second DropDatabase: err = %v", err)
	}
}

func TestScanAndGet(t *testing.T) {
	e, _ := setup(t)

	got := ids(t, mustEval(t, e, &planner.ScanTable{Name: "users"}))
	if len(got) != 3 || got[0] != "u1" || got[2] != "u3" {
		t.Errorf("ScanTable ids = %v", got)
	}

	doc := mustEval(t, e, &planner.GetByKey{DB: "test", Table: "users", Key: ast.String("u2")})
	if name, _ := doc.(ast.Object).Get("name"); !ast.Equal(name, ast.String("bob")) {
		t.Errorf("GetByKey(u2) = %s", doc)
	}
	if got := mustEval(t, e, &planner.GetByKey{Table: "users", Key: ast.String("zz")}); !ast.Equal(got, ast.Null{}) {
		t.Errorf("GetByKey(zz) = %s, want null", got)
	}

	_, err := e.Eval(context.Background(), &planner.ScanTable{Name: "nope"})
	if !errors.Is(err, storage.ErrTableNotFound) {
		t.Errorf("scan of missing table: err = %v", err)
	}
}

func TestFilter(t *testing.T) {
	e, _ := setup(t)
	scan := func() planner.PlanNode { return &planner.ScanTable{Name: "users"} }

	cases := []struct {
		name string
		pred ast.Expr
		want []string
	}{
		{"gt", ast.Binary(ast.OpGt, ast.FieldRef("age"), ast.Const(ast.Integer(30))), []string{"u2"}},
		{"decimal", ast.Binary(ast.OpLt, ast.FieldRef("age"), ast.Const(ast.DecimalFromFloat(25.5))), []string{"u1"}},
		{"eq string", ast.Binary(ast.OpEq, ast.FieldRef("name"), ast.Const(ast.String("cid"))), []string{"u3"}},
		{"or", ast.Binary(ast.OpOr,
			ast.Binary(ast.OpEq, ast.FieldRef("id"), ast.Const(ast.String("u1"))),
			ast.Binary(ast.OpGe, ast.FieldRef("age"), ast.Const(ast.Integer(40)))), []string{"u1", "u2"}},
		{"not", ast.Not(ast.Binary(ast.OpEq, ast.FieldRef("id"), ast.Const(ast.String("u1")))), []string{"u2", "u3"}},
		{"missing field", ast.Binary(ast.OpLe, ast.FieldRef("age"), ast.Const(ast.Integer(100))), []string{"u1", "u2"}},
		{"string order", ast.Binary(ast.OpGt, ast.FieldRef("name"), ast.Const(ast.String("b"))), []string{"u2", "u3"}},
	}

	for _, tc := range cases {
		got := ids(t, mustEval(t, e, &planner.Filter{Source: scan(), Predicate: tc.pred}))
		if len(got) != len(tc.want) {
			t.Errorf("%s: ids = %v, want %v", tc.name, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%s: ids = %v, want %v", tc.name, got, tc.want)
				break
			}
		}
	}
}

func TestFilterErrors(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()

	_, err := e.Eval(ctx, &planner.Filter{
		Source:    &planner.ScanTable{Name: "users"},
		Predicate: ast.Binary(ast.OpAdd, ast.FieldRef("id"), ast.Const(ast.String("x"))),
	})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("non-bool predicate: err = %v", err)
	}

	_, err = e.Eval(ctx, &planner.Filter{
		Source:    &planner.GetByKey{Table: "users", Key: ast.String("u1")},
		Predicate: ast.Const(ast.Bool(true)),
	})
	if !errors.Is(err, ErrNotSequence) {
		t.Errorf("filter over single document: err = %v", err)
	}
}

func TestInsert(t *testing.T) {
	e, b := setup(t)
	ctx := context.Background()

	res := mustEval(t, e, &planner.Insert{
		Table: &planner.ScanTable{Name: "users"},
		Documents: []ast.Datum{
			ast.Object{{Key: "id", Value: ast.String("u9")}},
			ast.Object{{Key: "name", Value: ast.String("anon")}},
			ast.Object{{Key: "id", Value: ast.String("u1")}},
		},
	})
	obj := res.(ast.Object)

	if v, _ := obj.Get("inserted"); !ast.Equal(v, ast.Integer(2)) {
		t.Errorf("inserted = %s", v)
	}
	if v, _ := obj.Get("errors"); !ast.Equal(v, ast.Integer(1)) {
		t.Errorf("errors = %s", v)
	}
	if _, ok := obj.Get("first_error"); !ok {
		t.Errorf("first_error missing from %s", obj)
	}

	keys, _ := obj.Get("generated_keys")
	gen := keys.(ast.Array)
	if len(gen) != 1 {
		t.Fatalf("generated_keys = %s", keys)
	}
	doc, ok, err := b.Get(ctx, "test", "users", string(gen[0].(ast.String)))
	if err != nil || !ok {
		t.Fatalf("generated document not stored: %v", err)
	}
	if name, _ := doc.Get("name"); !ast.Equal(name, ast.String("anon")) {
		t.Errorf("stored document = %s", doc)
	}

	_, err = e.Eval(ctx, &planner.Insert{
		Table:     &planner.ScanTable{Name: "users"},
		Documents: []ast.Datum{ast.Integer(1)},
	})
	if !errors.Is(err, ErrNotDocument) {
		t.Errorf("insert scalar: err = %v", err)
	}

	_, err = e.Eval(ctx, &planner.Insert{
		Table:     &planner.ScanTable{Name: "users"},
		Documents: []ast.Datum{ast.Object{{Key: "id", Value: ast.Integer(3)}}},
	})
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("insert integer id: err = %v", err)
	}
}

func TestDelete(t *testing.T) {
	cases := []struct {
		name   string
		source planner.PlanNode
		want   int64
		left   int
	}{
		{"table", &planner.ScanTable{Name: "users"}, 3, 0},
		{"filter", &planner.Filter{
			Source:    &planner.ScanTable{Name: "users"},
			Predicate: ast.Binary(ast.OpLt, ast.FieldRef("age"), ast.Const(ast.Integer(30))),
		}, 1, 2},
		{"get", &planner.GetByKey{Table: "users", Key: ast.String("u3")}, 1, 2},
		{"get missing", &planner.GetByKey{Table: "users", Key: ast.String("zz")}, 0, 3},
		{"eliminated filter", &planner.Constant{Value: ast.Array{}}, 0, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, b := setup(t)
			got := mustEval(t, e, &planner.Delete{Source: tc.source})
			if !ast.Equal(got, counter("deleted", tc.want)) {
				t.Errorf("Delete = %s, want deleted=%d", got, tc.want)
			}
			docs, _ := b.Scan(context.Background(), "test", "users")
			if len(docs) != tc.left {
				t.Errorf("%d documents left, want %d", len(docs), tc.left)
			}
		})
	}
}

func TestEvalExpressions(t *testing.T) {
	cases := []struct {
		expr ast.Expr
		want ast.Datum
	}{
		{ast.Binary(ast.OpAdd, ast.Const(ast.Integer(2)), ast.Const(ast.Integer(3))), ast.Integer(5)},
		{ast.Binary(ast.OpDiv, ast.Const(ast.Integer(6)), ast.Const(ast.Integer(3))), ast.Integer(2)},
		{ast.Binary(ast.OpDiv, ast.Const(ast.Integer(7)), ast.Const(ast.Integer(2))), ast.DecimalFromFloat(3.5)},
		{ast.Binary(ast.OpMul, ast.Const(ast.DecimalFromFloat(1.5)), ast.Const(ast.Integer(2))), ast.DecimalFromFloat(3)},
		{ast.Binary(ast.OpSub, ast.Const(ast.Integer(1)), ast.Const(ast.Integer(4))), ast.Integer(-3)},
		{ast.Binary(ast.OpAdd, ast.Const(ast.String("ab")), ast.Const(ast.String("c"))), ast.String("abc")},
		{ast.Binary(ast.OpEq, ast.Const(ast.Integer(1)), ast.Const(ast.DecimalFromFloat(1))), ast.Bool(true)},
		{ast.Binary(ast.OpNe, ast.Const(ast.String("a")), ast.Const(ast.Integer(1))), ast.Bool(true)},
		{ast.Binary(ast.OpLt, ast.Const(ast.Bool(false)), ast.Const(ast.Bool(true))), ast.Bool(true)},
		{ast.Binary(ast.OpAnd, ast.Const(ast.Bool(false)), ast.Const(ast.Integer(1))), ast.Bool(false)},
		{ast.Not(ast.Const(ast.Bool(false))), ast.Bool(true)},
	}

	e, _ := setup(t)
	for _, tc := range cases {
		got := mustEval(t, e, &planner.Eval{Expr: tc.expr})
		if !ast.Equal(got, tc.want) {
			t.Errorf("Eval(%s) = %s, want %s", tc.expr, got, tc.want)
		}
	}
}

func TestEvalExpressionErrors(t *testing.T) {
	cases := []struct {
		expr ast.Expr
		want error
	}{
		{ast.Binary(ast.OpDiv, ast.Const(ast.Integer(1)), ast.Const(ast.Integer(0))), ErrDivisionByZero},
		{ast.FieldRef("x"), ErrUnboundRow},
		{ast.Binary(ast.OpLt, ast.Const(ast.String("a")), ast.Const(ast.Integer(1))), ErrTypeMismatch},
		{ast.Binary(ast.OpOr, ast.Const(ast.Integer(1)), ast.Const(ast.Bool(true))), ErrTypeMismatch},
		{ast.Not(ast.Const(ast.Null{})), ErrTypeMismatch},
		{ast.Const(ast.Parameter("p")), ErrUnboundParameter},
	}

	e, _ := setup(t)
	for _, tc := range cases {
		_, err := e.Eval(context.Background(), &planner.Eval{Expr: tc.expr})
		if !errors.Is(err, tc.want) {
			t.Errorf("Eval(%s): err = %v, want %v", tc.expr, err, tc.want)
		}
	}
}

func TestEvalCancelled(t *testing.T) {
	e, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Eval(ctx, &planner.ScanTable{Name: "users"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
