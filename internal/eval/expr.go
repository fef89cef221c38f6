package eval

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// evalExpr evaluates e against row. row is nil outside of a filter.
func evalExpr(e ast.Expr, row ast.Object) (ast.Datum, error) {
	switch e := e.(type) {
	case *ast.Constant:
		if p, ok := e.Value.(ast.Parameter); ok {
			return nil, fmt.Errorf("%w: %s", ErrUnboundParameter, string(p))
		}
		return e.Value, nil

	case *ast.Field:
		return lookup(row, e.Path)

	case *ast.UnaryOp:
		v, err := evalExpr(e.Expr, row)
		if err != nil {
			return nil, err
		}
		b, ok := v.(ast.Bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects bool, got %s", ErrTypeMismatch, e.Op, ast.TypeName(v))
		}
		return !b, nil

	case *ast.BinaryOp:
		if e.Op.Logical() {
			return evalLogical(e, row)
		}
		l, err := evalExpr(e.Left, row)
		if err != nil {
			return nil, err
		}
		r, err := evalExpr(e.Right, row)
		if err != nil {
			return nil, err
		}
		return binary(e.Op, l, r)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedPlan, e)
}

func lookup(row ast.Object, path []string) (ast.Datum, error) {
	if row == nil {
		return nil, fmt.Errorf("%w: row.%s", ErrUnboundRow, strings.Join(path, "."))
	}
	var cur ast.Datum = row
	for _, key := range path {
		obj, ok := cur.(ast.Object)
		if !ok {
			return nil, fmt.Errorf("%w: row.%s", ErrMissingField, strings.Join(path, "."))
		}
		if cur, ok = obj.Get(key); !ok {
			return nil, fmt.Errorf("%w: row.%s", ErrMissingField, strings.Join(path, "."))
		}
	}
	return cur, nil
}

func evalLogical(e *ast.BinaryOp, row ast.Object) (ast.Datum, error) {
	l, err := evalBool(e.Op, e.Left, row)
	if err != nil {
		return nil, err
	}
	if e.Op == ast.OpAnd && !l || e.Op == ast.OpOr && l {
		return ast.Bool(l), nil
	}
	r, err := evalBool(e.Op, e.Right, row)
	if err != nil {
		return nil, err
	}
	return ast.Bool(r), nil
}

func evalBool(op ast.BinOp, e ast.Expr, row ast.Object) (bool, error) {
	v, err := evalExpr(e, row)
	if err != nil {
		return false, err
	}
	b, ok := v.(ast.Bool)
	if !ok {
		return false, fmt.Errorf("%w: %s expects bool operands, got %s", ErrTypeMismatch, op, ast.TypeName(v))
	}
	return bool(b), nil
}

func binary(op ast.BinOp, l, r ast.Datum) (ast.Datum, error) {
	switch op {
	case ast.OpEq:
		return ast.Bool(equal(l, r)), nil
	case ast.OpNe:
		return ast.Bool(!equal(l, r)), nil
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		c, err := compare(l, r)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot compare %s %s %s", err, ast.TypeName(l), op, ast.TypeName(r))
		}
		switch op {
		case ast.OpLt:
			return ast.Bool(c < 0), nil
		case ast.OpLe:
			return ast.Bool(c <= 0), nil
		case ast.OpGt:
			return ast.Bool(c > 0), nil
		default:
			return ast.Bool(c >= 0), nil
		}
	}
	return arithmetic(op, l, r)
}

// equal is ast.Equal except that numbers compare by value across Integer and
// Decimal.
func equal(l, r ast.Datum) bool {
	if a, ok := number(l); ok {
		if b, ok := number(r); ok {
			return a.Equal(b)
		}
	}
	return ast.Equal(l, r)
}

func compare(l, r ast.Datum) (int, error) {
	if a, ok := number(l); ok {
		if b, ok := number(r); ok {
			return a.Cmp(b), nil
		}
	}
	switch l := l.(type) {
	case ast.String:
		if r, ok := r.(ast.String); ok {
			return strings.Compare(string(l), string(r)), nil
		}
	case ast.Bool:
		if r, ok := r.(ast.Bool); ok {
			switch {
			case l == r:
				return 0, nil
			case !bool(l):
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, ErrTypeMismatch
}

func arithmetic(op ast.BinOp, l, r ast.Datum) (ast.Datum, error) {
	if op == ast.OpAdd {
		if ls, ok := l.(ast.String); ok {
			if rs, ok := r.(ast.String); ok {
				return ls + rs, nil
			}
		}
	}

	a, okl := number(l)
	b, okr := number(r)
	if !okl || !okr {
		return nil, fmt.Errorf("%w: cannot apply %s to %s and %s", ErrTypeMismatch, op, ast.TypeName(l), ast.TypeName(r))
	}

	var res decimal.Decimal
	switch op {
	case ast.OpAdd:
		res = a.Add(b)
	case ast.OpSub:
		res = a.Sub(b)
	case ast.OpMul:
		res = a.Mul(b)
	case ast.OpDiv:
		if b.IsZero() {
			return nil, ErrDivisionByZero
		}
		res = a.Div(b)
	default:
		return nil, fmt.Errorf("%w: operator %s", ErrUnsupportedPlan, op)
	}

	_, lint := l.(ast.Integer)
	_, rint := r.(ast.Integer)
	if lint && rint && res.IsInteger() && res.Cmp(minInt64) >= 0 && res.Cmp(maxInt64) <= 0 {
		return ast.Integer(res.IntPart()), nil
	}
	return ast.NewDecimal(res), nil
}

func number(d ast.Datum) (decimal.Decimal, bool) {
	switch d := d.(type) {
	case ast.Integer:
		return decimal.NewFromInt(int64(d)), true
	case ast.Decimal:
		return d.Decimal, true
	}
	return decimal.Decimal{}, false
}
