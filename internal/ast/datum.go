// Package ast defines the value domain and the query trees exchanged between
// the wire codec, the parser, the planner and the evaluator.
//
// Datums are immutable values. Terms and expressions are strict trees: every
// child belongs to exactly one parent and nothing in this package mutates a
// node after construction.
package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Datum is a scalar or composite value.
type Datum interface {
	fmt.Stringer
	datum()
}

type (
	// String is a UTF-8 string value.
	String string
	// Parameter is a named placeholder. It has the shape of a String.
	Parameter string
	// Integer is a signed 64-bit integer.
	Integer int64
	// Bool is a boolean value.
	Bool bool
	// Null is the absent value.
	Null struct{}
	// Array is an ordered list of values.
	Array []Datum
)

// Decimal is an arbitrary precision decimal number.
type Decimal struct {
	decimal.Decimal
}

// NewDecimal wraps d.
func NewDecimal(d decimal.Decimal) Decimal { return Decimal{Decimal: d} }

// DecimalFromFloat converts f to a Decimal.
func DecimalFromFloat(f float64) Decimal { return Decimal{Decimal: decimal.NewFromFloat(f)} }

// Pair is one key/value entry of an Object.
type Pair struct {
	Key   string
	Value Datum
}

// Object maps string keys to values and preserves insertion order.
type Object []Pair

func (String) datum()    {}
func (Parameter) datum() {}
func (Integer) datum()   {}
func (Decimal) datum()   {}
func (Bool) datum()      {}
func (Null) datum()      {}
func (Array) datum()     {}
func (Object) datum()    {}

func (s String) String() string    { return strconv.Quote(string(s)) }
func (p Parameter) String() string { return "Parameter(" + strconv.Quote(string(p)) + ")" }
func (i Integer) String() string   { return strconv.FormatInt(int64(i), 10) }
func (b Bool) String() string      { return strconv.FormatBool(bool(b)) }
func (Null) String() string        { return "null" }

func (a Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

func (o Object) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, p := range o {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(p.Key))
		sb.WriteString(": ")
		sb.WriteString(p.Value.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

// Get returns the value stored under key.
func (o Object) Get(key string) (Datum, bool) {
	for _, p := range o {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// With returns a copy of o where key maps to v. An existing key keeps its
// position; a new key is appended.
func (o Object) With(key string, v Datum) Object {
	out := make(Object, len(o), len(o)+1)
	copy(out, o)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = v
			return out
		}
	}
	return append(out, Pair{Key: key, Value: v})
}

// Keys returns the keys in insertion order.
func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, p := range o {
		keys[i] = p.Key
	}
	return keys
}

// Equal reports whether a and b are structurally equal. Objects compare as
// key sets; Decimals compare by numeric value.
func Equal(a, b Datum) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case String:
		b, ok := b.(String)
		return ok && a == b
	case Parameter:
		b, ok := b.(Parameter)
		return ok && a == b
	case Integer:
		b, ok := b.(Integer)
		return ok && a == b
	case Decimal:
		b, ok := b.(Decimal)
		return ok && a.Equal(b.Decimal)
	case Bool:
		b, ok := b.(Bool)
		return ok && a == b
	case Null:
		_, ok := b.(Null)
		return ok
	case Array:
		b, ok := b.(Array)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case Object:
		b, ok := b.(Object)
		if !ok || len(a) != len(b) {
			return false
		}
		for _, p := range a {
			v, ok := b.Get(p.Key)
			if !ok || !Equal(p.Value, v) {
				return false
			}
		}
		return true
	}
	return false
}

// TypeName returns the lower-case name of the datum's variant.
func TypeName(d Datum) string {
	switch d.(type) {
	case String:
		return "string"
	case Parameter:
		return "parameter"
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case Bool:
		return "bool"
	case Null:
		return "null"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}
