package client

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
	"github.com/kartikbazzad/bunbase/bunquery/internal/parser"
)

// Term is a query under construction. Its wire form is the encoded value
// sent to the server.
type Term struct {
	wire ast.Datum
}

// OptArgs is a map of optional arguments attached with Term.Opt.
type OptArgs map[string]interface{}

func compose(typ parser.TermType, args ...interface{}) Term {
	wargs := make(ast.Array, len(args))
	for i, a := range args {
		wargs[i] = toWire(a)
	}
	return Term{wire: ast.Array{ast.Integer(typ), wargs}}
}

// Wire returns the value sent to the server for t.
func (t Term) Wire() ast.Datum { return t.wire }

func (t Term) String() string { return t.wire.String() }

// Opt attaches optional arguments to t.
func (t Term) Opt(opts OptArgs) Term {
	arr, ok := t.wire.(ast.Array)
	if !ok || len(arr) < 2 {
		return t
	}
	return Term{wire: ast.Array{arr[0], arr[1], toWire(map[string]interface{}(opts))}}
}

// DB creates a DB term ([14, [name]]).
func DB(name string) Term { return compose(parser.TermDB, name) }

// DBCreate creates a DB_CREATE term ([57, [name]]).
func DBCreate(name string) Term { return compose(parser.TermDBCreate, name) }

// DBDrop creates a DB_DROP term ([58, [name]]).
func DBDrop(name string) Term { return compose(parser.TermDBDrop, name) }

// DBList creates a DB_LIST term ([59, []]).
func DBList() Term { return compose(parser.TermDBList) }

// Table references a table of the default database ([15, [name]]).
func Table(name string) Term { return compose(parser.TermTable, name) }

// Table references a table of the database t ([15, [db, name]]).
func (t Term) Table(name string) Term { return compose(parser.TermTable, t, name) }

// TableCreate creates a table in the database t ([60, [db, name]]).
func (t Term) TableCreate(name string) Term { return compose(parser.TermTableCreate, t, name) }

// TableDrop drops a table of the database t ([61, [db, name]]).
func (t Term) TableDrop(name string) Term { return compose(parser.TermTableDrop, t, name) }

// TableList lists the tables of the database t ([62, [db]]).
func (t Term) TableList() Term { return compose(parser.TermTableList, t) }

// TableCreate creates a table in the default database.
func TableCreate(name string) Term { return compose(parser.TermTableCreate, name) }

// TableList lists the tables of the default database.
func TableList() Term { return compose(parser.TermTableList) }

// Get creates a GET term ([16, [table, key]]).
func (t Term) Get(key interface{}) Term { return compose(parser.TermGet, t, key) }

// Filter creates a FILTER term ([39, [seq, predicate]]).
func (t Term) Filter(predicate interface{}) Term { return compose(parser.TermFilter, t, predicate) }

// Insert creates an INSERT term ([56, [table, docs]]). docs is a single
// document or a slice of documents.
func (t Term) Insert(docs interface{}) Term { return compose(parser.TermInsert, t, docs) }

// Delete creates a DELETE term ([54, [seq]]).
func (t Term) Delete() Term { return compose(parser.TermDelete, t) }

// Row references a field of the current document ([31, [path...]]).
func Row(path ...string) Term {
	args := make([]interface{}, len(path))
	for i, p := range path {
		args[i] = p
	}
	return compose(parser.TermGetField, args...)
}

// Expr wraps a Go value so that operators can be chained on it.
func Expr(v interface{}) Term { return Term{wire: toWire(v)} }

func (t Term) Eq(v interface{}) Term  { return compose(parser.TermEq, t, v) }
func (t Term) Ne(v interface{}) Term  { return compose(parser.TermNe, t, v) }
func (t Term) Lt(v interface{}) Term  { return compose(parser.TermLt, t, v) }
func (t Term) Le(v interface{}) Term  { return compose(parser.TermLe, t, v) }
func (t Term) Gt(v interface{}) Term  { return compose(parser.TermGt, t, v) }
func (t Term) Ge(v interface{}) Term  { return compose(parser.TermGe, t, v) }
func (t Term) Add(v interface{}) Term { return compose(parser.TermAdd, t, v) }
func (t Term) Sub(v interface{}) Term { return compose(parser.TermSub, t, v) }
func (t Term) Mul(v interface{}) Term { return compose(parser.TermMul, t, v) }
func (t Term) Div(v interface{}) Term { return compose(parser.TermDiv, t, v) }
func (t Term) Not() Term              { return compose(parser.TermNot, t) }

// And creates an AND term over t and rest.
func (t Term) And(rest ...interface{}) Term {
	return compose(parser.TermAnd, append([]interface{}{t}, rest...)...)
}

// Or creates an OR term over t and rest.
func (t Term) Or(rest ...interface{}) Term {
	return compose(parser.TermOr, append([]interface{}{t}, rest...)...)
}

// toWire converts a Go value to its wire form. Slices become MAKE_ARRAY terms
// and maps become objects with sorted keys.
func toWire(v interface{}) ast.Datum {
	switch v := v.(type) {
	case Term:
		return v.wire
	case nil:
		return ast.Null{}
	case ast.Array:
		items := make(ast.Array, len(v))
		for i, e := range v {
			items[i] = toWire(e)
		}
		return ast.Array{ast.Integer(parser.TermMakeArray), items}
	case ast.Object:
		out := make(ast.Object, len(v))
		for i, p := range v {
			out[i] = ast.Pair{Key: p.Key, Value: toWire(p.Value)}
		}
		return out
	case ast.Datum:
		return v
	case string:
		return ast.String(v)
	case bool:
		return ast.Bool(v)
	case int:
		return ast.Integer(v)
	case int32:
		return ast.Integer(v)
	case int64:
		return ast.Integer(v)
	case uint32:
		return ast.Integer(v)
	case float32:
		return ast.DecimalFromFloat(float64(v))
	case float64:
		return ast.DecimalFromFloat(v)
	case decimal.Decimal:
		return ast.NewDecimal(v)
	case []interface{}:
		items := make(ast.Array, len(v))
		for i, e := range v {
			items[i] = toWire(e)
		}
		return ast.Array{ast.Integer(parser.TermMakeArray), items}
	case []string:
		items := make(ast.Array, len(v))
		for i, e := range v {
			items[i] = ast.String(e)
		}
		return ast.Array{ast.Integer(parser.TermMakeArray), items}
	case []map[string]interface{}:
		items := make(ast.Array, len(v))
		for i, e := range v {
			items[i] = toWire(e)
		}
		return ast.Array{ast.Integer(parser.TermMakeArray), items}
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(ast.Object, len(keys))
		for i, k := range keys {
			obj[i] = ast.Pair{Key: k, Value: toWire(v[k])}
		}
		return obj
	}
	panic(fmt.Sprintf("client: unsupported value of type %T", v))
}
