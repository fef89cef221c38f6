// Package parser turns decoded wire values into query terms.
//
// A composite term is encoded as [type, [args...]] or
// [type, [args...], {optargs}], where type is an integer TermType. Every other
// value is a datum. Arrays are not datums on their own: a literal array is
// written as [MAKE_ARRAY, [elements...]].
package parser

import (
	"errors"
	"fmt"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

var (
	ErrMalformedTerm   = errors.New("malformed term")
	ErrUnknownTermType = errors.New("unknown term type")
	ErrArity           = errors.New("wrong number of arguments")
)

var binaryOps = map[TermType]ast.BinOp{
	TermEq:  ast.OpEq,
	TermNe:  ast.OpNe,
	TermLt:  ast.OpLt,
	TermLe:  ast.OpLe,
	TermGt:  ast.OpGt,
	TermGe:  ast.OpGe,
	TermAdd: ast.OpAdd,
	TermSub: ast.OpSub,
	TermMul: ast.OpMul,
	TermDiv: ast.OpDiv,
	TermAnd: ast.OpAnd,
	TermOr:  ast.OpOr,
}

// variadic operators fold left: [AND, [a, b, c]] is ((a AND b) AND c).
var variadic = map[TermType]bool{
	TermAnd: true,
	TermOr:  true,
	TermAdd: true,
	TermMul: true,
}

// Parser converts wire values to terms. It holds no state and is safe for
// concurrent use.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// composite is an unpacked [type, args, optargs] triple.
type composite struct {
	typ     TermType
	args    ast.Array
	optArgs ast.OptArgs
}

// Parse converts v into a term.
func (p *Parser) Parse(v ast.Datum) (ast.Term, error) {
	c, ok, err := unpack(v)
	if err != nil {
		return nil, err
	}
	if !ok {
		d, err := parseDatum(v)
		if err != nil {
			return nil, err
		}
		return &ast.DatumTerm{Value: d}, nil
	}
	return p.parseComposite(c)
}

func (p *Parser) parseComposite(c composite) (ast.Term, error) {
	if _, ok := binaryOps[c.typ]; ok || c.typ == TermNot || c.typ == TermGetField {
		e, err := parseExprComposite(c)
		if err != nil {
			return nil, err
		}
		return &ast.ExprTerm{Expr: e}, nil
	}

	switch c.typ {
	case TermMakeArray:
		d, err := parseArray(c)
		if err != nil {
			return nil, err
		}
		return &ast.DatumTerm{Value: d}, nil

	case TermDB:
		name, err := nameArg(c)
		if err != nil {
			return nil, err
		}
		return &ast.Database{Name: name}, nil

	case TermDBCreate:
		name, err := nameArg(c)
		if err != nil {
			return nil, err
		}
		return &ast.DatabaseCreate{Name: name}, nil

	case TermDBDrop:
		name, err := nameArg(c)
		if err != nil {
			return nil, err
		}
		return &ast.DatabaseDrop{Name: name}, nil

	case TermDBList:
		if err := arity(c, 0, 0); err != nil {
			return nil, err
		}
		return &ast.DatabaseList{}, nil

	case TermTable:
		db, name, err := tableArgs(c)
		if err != nil {
			return nil, err
		}
		return &ast.Table{DB: db, Name: name}, nil

	case TermTableCreate:
		db, name, err := tableArgs(c)
		if err != nil {
			return nil, err
		}
		return &ast.TableCreate{DB: db, Name: name}, nil

	case TermTableDrop:
		db, name, err := tableArgs(c)
		if err != nil {
			return nil, err
		}
		return &ast.TableDrop{DB: db, Name: name}, nil

	case TermTableList:
		if err := arity(c, 0, 1); err != nil {
			return nil, err
		}
		var db string
		if len(c.args) == 1 {
			var err error
			if db, err = dbArg(c.args[0]); err != nil {
				return nil, err
			}
		}
		return &ast.TableList{DB: db}, nil

	case TermGet:
		if err := arity(c, 2, 2); err != nil {
			return nil, err
		}
		table, err := p.Parse(c.args[0])
		if err != nil {
			return nil, err
		}
		key, err := parseDatum(c.args[1])
		if err != nil {
			return nil, err
		}
		return &ast.Get{Table: table, Key: key, OptArgs: c.optArgs}, nil

	case TermFilter:
		if err := arity(c, 2, 2); err != nil {
			return nil, err
		}
		source, err := p.Parse(c.args[0])
		if err != nil {
			return nil, err
		}
		predicate, err := p.parsePredicate(c.args[1])
		if err != nil {
			return nil, err
		}
		return &ast.Filter{Source: source, Predicate: predicate, OptArgs: c.optArgs}, nil

	case TermInsert:
		if err := arity(c, 2, 2); err != nil {
			return nil, err
		}
		table, err := p.Parse(c.args[0])
		if err != nil {
			return nil, err
		}
		docs, err := parseDocuments(c.args[1])
		if err != nil {
			return nil, err
		}
		return &ast.Insert{Table: table, Documents: docs, OptArgs: c.optArgs}, nil

	case TermDelete:
		if err := arity(c, 1, 1); err != nil {
			return nil, err
		}
		source, err := p.Parse(c.args[0])
		if err != nil {
			return nil, err
		}
		return &ast.Delete{Source: source, OptArgs: c.optArgs}, nil
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownTermType, int(c.typ))
}

// parsePredicate accepts an expression, or a bare value which becomes a
// constant expression. Any other term is returned unchanged so that the
// planner can reject it.
func (p *Parser) parsePredicate(v ast.Datum) (ast.Term, error) {
	c, ok, err := unpack(v)
	if err != nil {
		return nil, err
	}
	if !ok || c.typ == TermMakeArray {
		e, err := parseExpr(v)
		if err != nil {
			return nil, err
		}
		return &ast.ExprTerm{Expr: e}, nil
	}
	return p.parseComposite(c)
}

func parseExpr(v ast.Datum) (ast.Expr, error) {
	c, ok, err := unpack(v)
	if err != nil {
		return nil, err
	}
	if !ok {
		d, err := parseDatum(v)
		if err != nil {
			return nil, err
		}
		return ast.Const(d), nil
	}
	if c.typ == TermMakeArray {
		d, err := parseArray(c)
		if err != nil {
			return nil, err
		}
		return ast.Const(d), nil
	}
	return parseExprComposite(c)
}

func parseExprComposite(c composite) (ast.Expr, error) {
	switch c.typ {
	case TermGetField:
		if len(c.args) == 0 {
			return nil, fmt.Errorf("%w: GET_FIELD expects at least 1 argument", ErrArity)
		}
		path := make([]string, len(c.args))
		for i, a := range c.args {
			s, ok := a.(ast.String)
			if !ok {
				return nil, fmt.Errorf("%w: GET_FIELD path element must be a string, got %s", ErrMalformedTerm, ast.TypeName(a))
			}
			path[i] = string(s)
		}
		return ast.FieldRef(path...), nil

	case TermNot:
		if err := arity(c, 1, 1); err != nil {
			return nil, err
		}
		inner, err := parseExpr(c.args[0])
		if err != nil {
			return nil, err
		}
		return ast.Not(inner), nil
	}

	op, ok := binaryOps[c.typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be used in an expression", ErrMalformedTerm, c.typ)
	}

	maxArgs := 2
	if variadic[c.typ] {
		maxArgs = -1
	}
	if err := arity(c, 2, maxArgs); err != nil {
		return nil, err
	}

	left, err := parseExpr(c.args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range c.args[1:] {
		right, err := parseExpr(a)
		if err != nil {
			return nil, err
		}
		left = ast.Binary(op, left, right)
	}
	return left, nil
}

// parseDocuments accepts a single object or an array of objects.
func parseDocuments(v ast.Datum) ([]ast.Datum, error) {
	d, err := parseDatum(v)
	if err != nil {
		return nil, err
	}
	switch d := d.(type) {
	case ast.Object:
		return []ast.Datum{d}, nil
	case ast.Array:
		return d, nil
	}
	return nil, fmt.Errorf("%w: INSERT expects an object or an array of objects, got %s", ErrMalformedTerm, ast.TypeName(d))
}

// parseDatum validates a value used as data. Arrays must be MAKE_ARRAY terms;
// object values are checked recursively.
func parseDatum(v ast.Datum) (ast.Datum, error) {
	switch d := v.(type) {
	case ast.Array:
		c, ok, err := unpack(d)
		if err != nil {
			return nil, err
		}
		if !ok || c.typ != TermMakeArray {
			return nil, fmt.Errorf("%w: expected a datum, got a term", ErrMalformedTerm)
		}
		return parseArray(c)

	case ast.Object:
		out := make(ast.Object, len(d))
		for i, p := range d {
			val, err := parseDatum(p.Value)
			if err != nil {
				return nil, err
			}
			out[i] = ast.Pair{Key: p.Key, Value: val}
		}
		return out, nil
	}
	return v, nil
}

func parseArray(c composite) (ast.Datum, error) {
	out := make(ast.Array, len(c.args))
	for i, a := range c.args {
		d, err := parseDatum(a)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// unpack splits v into a composite term. ok is false when v is not an array.
func unpack(v ast.Datum) (c composite, ok bool, err error) {
	arr, isArray := v.(ast.Array)
	if !isArray {
		return composite{}, false, nil
	}
	if len(arr) < 2 || len(arr) > 3 {
		return composite{}, false, fmt.Errorf("%w: expected [type, args] or [type, args, optargs]", ErrMalformedTerm)
	}

	typ, isInt := arr[0].(ast.Integer)
	if !isInt {
		return composite{}, false, fmt.Errorf("%w: term type must be an integer, got %s", ErrMalformedTerm, ast.TypeName(arr[0]))
	}
	args, isArray := arr[1].(ast.Array)
	if !isArray {
		return composite{}, false, fmt.Errorf("%w: %s arguments must be an array", ErrMalformedTerm, TermType(typ))
	}

	c = composite{typ: TermType(typ), args: args}
	if len(arr) == 3 {
		opts, isObject := arr[2].(ast.Object)
		if !isObject {
			return composite{}, false, fmt.Errorf("%w: %s optargs must be an object", ErrMalformedTerm, c.typ)
		}
		c.optArgs = opts
	}
	return c, true, nil
}

// arity checks the argument count; hi < 0 means unbounded.
func arity(c composite, lo, hi int) error {
	n := len(c.args)
	if n < lo || (hi >= 0 && n > hi) {
		return fmt.Errorf("%w: %s got %d", ErrArity, c.typ, n)
	}
	return nil
}

func nameArg(c composite) (string, error) {
	if err := arity(c, 1, 1); err != nil {
		return "", err
	}
	s, ok := c.args[0].(ast.String)
	if !ok {
		return "", fmt.Errorf("%w: %s name must be a string, got %s", ErrMalformedTerm, c.typ, ast.TypeName(c.args[0]))
	}
	return string(s), nil
}

// tableArgs accepts [name] or [DB term, name].
func tableArgs(c composite) (db, name string, err error) {
	if err := arity(c, 1, 2); err != nil {
		return "", "", err
	}
	nameIdx := 0
	if len(c.args) == 2 {
		if db, err = dbArg(c.args[0]); err != nil {
			return "", "", err
		}
		nameIdx = 1
	}
	s, ok := c.args[nameIdx].(ast.String)
	if !ok {
		return "", "", fmt.Errorf("%w: %s name must be a string, got %s", ErrMalformedTerm, c.typ, ast.TypeName(c.args[nameIdx]))
	}
	return db, string(s), nil
}

// dbArg extracts the name of a DB term.
func dbArg(v ast.Datum) (string, error) {
	c, ok, err := unpack(v)
	if err != nil {
		return "", err
	}
	if !ok || c.typ != TermDB {
		return "", fmt.Errorf("%w: expected a DB term", ErrMalformedTerm)
	}
	return nameArg(c)
}
