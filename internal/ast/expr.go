package ast

import (
	"fmt"
	"strings"
)

// BinOp is a binary expression operator.
type BinOp uint8

const (
	OpAnd BinOp = iota + 1
	OpOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
)

var binOpText = map[BinOp]string{
	OpAnd: "AND",
	OpOr:  "OR",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
}

func (op BinOp) String() string {
	if s, ok := binOpText[op]; ok {
		return s
	}
	return fmt.Sprintf("BinOp(%d)", uint8(op))
}

// Logical reports whether op is AND or OR.
func (op BinOp) Logical() bool { return op == OpAnd || op == OpOr }

// UnOp is a unary expression operator.
type UnOp uint8

const (
	OpNot UnOp = iota + 1
)

func (op UnOp) String() string {
	if op == OpNot {
		return "NOT"
	}
	return fmt.Sprintf("UnOp(%d)", uint8(op))
}

// Expr is a scalar expression evaluated against at most one document.
type Expr interface {
	fmt.Stringer
	expr()
}

// Constant is a literal value.
type Constant struct {
	Value Datum
}

// Field references a (possibly nested) field of the current document.
type Field struct {
	Path []string
}

// BinaryOp applies Op to Left and Right.
type BinaryOp struct {
	Op          BinOp
	Left, Right Expr
}

// UnaryOp applies Op to Expr.
type UnaryOp struct {
	Op   UnOp
	Expr Expr
}

func (*Constant) expr() {}
func (*Field) expr()    {}
func (*BinaryOp) expr() {}
func (*UnaryOp) expr()  {}

func (c *Constant) String() string { return c.Value.String() }

func (f *Field) String() string { return "row." + strings.Join(f.Path, ".") }

func (b *BinaryOp) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

func (u *UnaryOp) String() string { return u.Op.String() + " " + u.Expr.String() }

// Const is shorthand for &Constant{Value: d}.
func Const(d Datum) *Constant { return &Constant{Value: d} }

// FieldRef is shorthand for &Field{Path: path}.
func FieldRef(path ...string) *Field { return &Field{Path: path} }

// Binary is shorthand for &BinaryOp{Op: op, Left: l, Right: r}.
func Binary(op BinOp, l, r Expr) *BinaryOp { return &BinaryOp{Op: op, Left: l, Right: r} }

// Not is shorthand for &UnaryOp{Op: OpNot, Expr: e}.
func Not(e Expr) *UnaryOp { return &UnaryOp{Op: OpNot, Expr: e} }

// IsBool reports whether e is the constant boolean b.
func IsBool(e Expr, b bool) bool {
	c, ok := e.(*Constant)
	if !ok {
		return false
	}
	v, ok := c.Value.(Bool)
	return ok && bool(v) == b
}
