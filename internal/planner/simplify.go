package planner

import (
	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

var (
	constTrue  = ast.Bool(true)
	constFalse = ast.Bool(false)
)

// Simplify rewrites e bottom-up using boolean identities:
//
//	true AND x  => x        x AND true  => x
//	false OR x  => x        x OR false  => x
//	x AND false => false    false AND x => false
//	true OR x   => true     x OR true   => true
//	NOT <bool constant> is folded.
//
// Comparison and arithmetic operators are rebuilt with their simplified
// operands and never folded. The input tree is left untouched.
func Simplify(e ast.Expr) ast.Expr {
	out, _ := simplify(e)
	return out
}

// simplify is Simplify that also reports whether any identity fired.
func simplify(e ast.Expr) (ast.Expr, bool) {
	switch e := e.(type) {
	case *ast.BinaryOp:
		left, lc := simplify(e.Left)
		right, rc := simplify(e.Right)

		switch e.Op {
		case ast.OpAnd:
			switch {
			case ast.IsBool(left, true):
				return right, true
			case ast.IsBool(right, true):
				return left, true
			case ast.IsBool(right, false), ast.IsBool(left, false):
				return ast.Const(constFalse), true
			}
		case ast.OpOr:
			switch {
			case ast.IsBool(left, false):
				return right, true
			case ast.IsBool(right, false):
				return left, true
			case ast.IsBool(left, true), ast.IsBool(right, true):
				return ast.Const(constTrue), true
			}
		}
		return &ast.BinaryOp{Op: e.Op, Left: left, Right: right}, lc || rc

	case *ast.UnaryOp:
		inner, changed := simplify(e.Expr)
		if c, ok := inner.(*ast.Constant); ok && e.Op == ast.OpNot {
			if b, ok := c.Value.(ast.Bool); ok {
				return ast.Const(!b), true
			}
		}
		return &ast.UnaryOp{Op: e.Op, Expr: inner}, changed
	}

	// Constants and field references are fixed points.
	return e, false
}
