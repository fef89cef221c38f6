// Package eval executes optimized plans against a storage backend.
package eval

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
	"github.com/kartikbazzad/bunbase/bunquery/internal/planner"
	"github.com/kartikbazzad/bunbase/bunquery/internal/storage"
)

var (
	ErrUnsupportedPlan  = errors.New("unsupported plan node")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrUnboundRow       = errors.New("field reference outside of a row context")
	ErrMissingField     = errors.New("no such field")
	ErrUnboundParameter = errors.New("unbound parameter")
	ErrNotDocument      = errors.New("expected a document")
	ErrInvalidKey       = errors.New("primary key must be a string")
	ErrNotSequence      = errors.New("expected a sequence")
)

// Result is the value produced by one plan.
type Result struct {
	Result ast.Datum
}

// Evaluator runs plans against a shared backend. It is cheap to construct and
// holds no per-request state.
type Evaluator struct {
	backend   storage.Backend
	defaultDB string
}

// New returns an Evaluator over backend. Tables and lookups without a
// database resolve to defaultDB.
func New(backend storage.Backend, defaultDB string) *Evaluator {
	return &Evaluator{backend: backend, defaultDB: defaultDB}
}

// Eval executes plan.
func (e *Evaluator) Eval(ctx context.Context, plan planner.PlanNode) (*Result, error) {
	d, err := e.eval(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &Result{Result: d}, nil
}

func (e *Evaluator) eval(ctx context.Context, plan planner.PlanNode) (ast.Datum, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch n := plan.(type) {
	case *planner.SelectDatabase:
		db := e.db(n.Name)
		tables, err := e.backend.ListTables(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("database %q: %w", db, err)
		}
		return ast.Object{
			{Key: "name", Value: ast.String(db)},
			{Key: "tables", Value: names(tables)},
		}, nil

	case *planner.CreateDatabase:
		if err := e.backend.CreateDatabase(ctx, n.Name); err != nil {
			return nil, fmt.Errorf("database %q: %w", n.Name, err)
		}
		return counter("created", 1), nil

	case *planner.DropDatabase:
		if err := e.backend.DropDatabase(ctx, n.Name); err != nil {
			return nil, fmt.Errorf("database %q: %w", n.Name, err)
		}
		return counter("dropped", 1), nil

	case *planner.ListDatabases:
		dbs, err := e.backend.ListDatabases(ctx)
		if err != nil {
			return nil, err
		}
		return names(dbs), nil

	case *planner.CreateTable:
		if err := e.backend.CreateTable(ctx, e.db(n.DB), n.Name); err != nil {
			return nil, fmt.Errorf("table %q: %w", n.Name, err)
		}
		return counter("created", 1), nil

	case *planner.DropTable:
		if err := e.backend.DropTable(ctx, e.db(n.DB), n.Name); err != nil {
			return nil, fmt.Errorf("table %q: %w", n.Name, err)
		}
		return counter("dropped", 1), nil

	case *planner.ListTables:
		db := e.db(n.DB)
		tables, err := e.backend.ListTables(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("database %q: %w", db, err)
		}
		return names(tables), nil

	case *planner.ScanTable:
		docs, err := e.backend.Scan(ctx, e.db(n.DB), n.Name)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", n.Name, err)
		}
		out := make(ast.Array, len(docs))
		for i, d := range docs {
			out[i] = d
		}
		return out, nil

	case *planner.GetByKey:
		key, ok := n.Key.(ast.String)
		if !ok {
			return nil, fmt.Errorf("%w: got %s", ErrInvalidKey, ast.TypeName(n.Key))
		}
		doc, found, err := e.backend.Get(ctx, e.db(n.DB), n.Table, string(key))
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", n.Table, err)
		}
		if !found {
			return ast.Null{}, nil
		}
		return doc, nil

	case *planner.Filter:
		return e.filter(ctx, n)

	case *planner.Insert:
		return e.insert(ctx, n)

	case *planner.Delete:
		return e.delete(ctx, n)

	case *planner.Eval:
		return evalExpr(n.Expr, nil)

	case *planner.Constant:
		return n.Value, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlan, plan)
}

func (e *Evaluator) filter(ctx context.Context, n *planner.Filter) (ast.Datum, error) {
	src, err := e.eval(ctx, n.Source)
	if err != nil {
		return nil, err
	}
	rows, ok := src.(ast.Array)
	if !ok {
		return nil, fmt.Errorf("%w: filter source produced %s", ErrNotSequence, ast.TypeName(src))
	}

	out := ast.Array{}
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keep, err := matches(n.Predicate, r)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, r)
		}
	}
	return out, nil
}

// matches evaluates predicate against row. A document missing a referenced
// field does not match.
func matches(predicate ast.Expr, row ast.Datum) (bool, error) {
	doc, ok := row.(ast.Object)
	if !ok {
		return false, fmt.Errorf("%w: filter row is %s", ErrNotDocument, ast.TypeName(row))
	}
	v, err := evalExpr(predicate, doc)
	if errors.Is(err, ErrMissingField) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b, ok := v.(ast.Bool)
	if !ok {
		return false, fmt.Errorf("%w: predicate produced %s", ErrTypeMismatch, ast.TypeName(v))
	}
	return bool(b), nil
}

func (e *Evaluator) insert(ctx context.Context, n *planner.Insert) (ast.Datum, error) {
	tbl, ok := n.Table.(*planner.ScanTable)
	if !ok {
		return nil, fmt.Errorf("%w: insert target %s is not a table", ErrUnsupportedPlan, n.Table)
	}
	db := e.db(tbl.DB)

	var (
		inserted   int64
		failed     int64
		firstError string
		generated  = ast.Array{}
	)
	for _, d := range n.Documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, ok := d.(ast.Object)
		if !ok {
			return nil, fmt.Errorf("%w: cannot insert %s", ErrNotDocument, ast.TypeName(d))
		}

		id, ok := doc.Get("id")
		if !ok {
			key := uuid.NewString()
			doc = doc.With("id", ast.String(key))
			id = ast.String(key)
			generated = append(generated, id)
		}
		key, ok := id.(ast.String)
		if !ok {
			return nil, fmt.Errorf("%w: got %s", ErrInvalidKey, ast.TypeName(id))
		}

		err := e.backend.Insert(ctx, db, tbl.Name, string(key), doc)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			failed++
			if firstError == "" {
				firstError = fmt.Sprintf("%s: %s", err, key)
			}
		case err != nil:
			return nil, fmt.Errorf("table %q: %w", tbl.Name, err)
		default:
			inserted++
		}
	}

	result := ast.Object{
		{Key: "inserted", Value: ast.Integer(inserted)},
		{Key: "errors", Value: ast.Integer(failed)},
		{Key: "generated_keys", Value: generated},
	}
	if firstError != "" {
		result = append(result, ast.Pair{Key: "first_error", Value: ast.String(firstError)})
	}
	return result, nil
}

func (e *Evaluator) delete(ctx context.Context, n *planner.Delete) (ast.Datum, error) {
	db, table, err := e.target(n.Source)
	if err != nil {
		return nil, err
	}

	src, err := e.eval(ctx, n.Source)
	if err != nil {
		return nil, err
	}

	var docs ast.Array
	switch src := src.(type) {
	case ast.Array:
		docs = src
	case ast.Object:
		docs = ast.Array{src}
	case ast.Null:
	default:
		return nil, fmt.Errorf("%w: delete source produced %s", ErrNotSequence, ast.TypeName(src))
	}

	var deleted int64
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, ok := d.(ast.Object)
		if !ok {
			return nil, fmt.Errorf("%w: cannot delete %s", ErrNotDocument, ast.TypeName(d))
		}
		id, _ := doc.Get("id")
		key, ok := id.(ast.String)
		if !ok {
			return nil, fmt.Errorf("%w: document has no string id", ErrInvalidKey)
		}
		found, err := e.backend.Delete(ctx, db, table, string(key))
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", table, err)
		}
		if found {
			deleted++
		}
	}
	return counter("deleted", deleted), nil
}

// target returns the table a delete source reads from. A constant source
// (an eliminated filter) has no table and deletes nothing.
func (e *Evaluator) target(source planner.PlanNode) (db, table string, err error) {
	switch s := source.(type) {
	case *planner.ScanTable:
		return e.db(s.DB), s.Name, nil
	case *planner.GetByKey:
		return e.db(s.DB), s.Table, nil
	case *planner.Filter:
		return e.target(s.Source)
	case *planner.Constant:
		return "", "", nil
	}
	return "", "", fmt.Errorf("%w: cannot delete from %s", ErrUnsupportedPlan, source)
}

func (e *Evaluator) db(name string) string {
	if name == "" {
		return e.defaultDB
	}
	return name
}

func counter(key string, n int64) ast.Object {
	return ast.Object{{Key: key, Value: ast.Integer(n)}}
}

func names(list []string) ast.Array {
	out := make(ast.Array, len(list))
	for i, n := range list {
		out[i] = ast.String(n)
	}
	return out
}
