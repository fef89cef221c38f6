package wire

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/tinylib/msgp/msgp"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

// MaxDepth bounds the nesting of arrays and maps accepted by Decode.
const MaxDepth = 256

// DecimalExtension is the msgpack extension type EncodeDocument writes for
// Decimals. Its payload is the decimal's exact string form.
const DecimalExtension int8 = 1

var (
	ErrUnsupportedType = errors.New("unsupported msgpack type")
	ErrMapKey          = errors.New("map keys must be strings")
	ErrIntegerRange    = errors.New("integer out of range")
	ErrTooDeep         = errors.New("value nested too deeply")
	ErrTrailingBytes   = errors.New("trailing bytes after value")
)

// Encode serializes d as a single msgpack value.
//
// String and Parameter become strings, Integer an int, Decimal a float64
// (lossy), Bool a bool, Null nil, Array an array and Object a map with
// string keys written in insertion order.
func Encode(d ast.Datum) []byte {
	return AppendDatum(nil, d)
}

// AppendDatum appends the msgpack encoding of d to b.
func AppendDatum(b []byte, d ast.Datum) []byte {
	return codec{}.append(b, d)
}

// EncodeDocument is Encode with Decimals written as DecimalExtension values,
// so they survive storage without rounding.
func EncodeDocument(d ast.Datum) []byte {
	return codec{exactDecimals: true}.append(nil, d)
}

// DecodeDocument parses a value written by EncodeDocument.
func DecodeDocument(payload []byte) (ast.Datum, error) {
	return codec{exactDecimals: true}.decode(payload)
}

type codec struct {
	exactDecimals bool
}

func (c codec) append(b []byte, d ast.Datum) []byte {
	switch v := d.(type) {
	case ast.String:
		return msgp.AppendString(b, string(v))
	case ast.Parameter:
		return msgp.AppendString(b, string(v))
	case ast.Integer:
		return msgp.AppendInt64(b, int64(v))
	case ast.Decimal:
		if c.exactDecimals {
			// decimalExt never fails to marshal.
			b, _ = msgp.AppendExtension(b, &decimalExt{d: v.Decimal})
			return b
		}
		f, _ := v.Float64()
		return msgp.AppendFloat64(b, f)
	case ast.Bool:
		return msgp.AppendBool(b, bool(v))
	case ast.Array:
		b = msgp.AppendArrayHeader(b, uint32(len(v)))
		for _, e := range v {
			b = c.append(b, e)
		}
		return b
	case ast.Object:
		b = msgp.AppendMapHeader(b, uint32(len(v)))
		for _, p := range v {
			b = msgp.AppendString(b, p.Key)
			b = c.append(b, p.Value)
		}
		return b
	}
	return msgp.AppendNil(b)
}

// Decode parses payload, which must hold exactly one msgpack value.
func Decode(payload []byte) (ast.Datum, error) {
	return codec{}.decode(payload)
}

func (c codec) decode(payload []byte) (ast.Datum, error) {
	d, rest, err := c.decodeValue(payload, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, ErrTrailingBytes
	}
	return d, nil
}

func (c codec) decodeValue(b []byte, depth int) (ast.Datum, []byte, error) {
	if depth > MaxDepth {
		return nil, b, ErrTooDeep
	}

	switch t := msgp.NextType(b); t {
	case msgp.NilType:
		rest, err := msgp.ReadNilBytes(b)
		return ast.Null{}, rest, err

	case msgp.BoolType:
		v, rest, err := msgp.ReadBoolBytes(b)
		return ast.Bool(v), rest, err

	case msgp.IntType:
		v, rest, err := msgp.ReadInt64Bytes(b)
		return ast.Integer(v), rest, err

	case msgp.UintType:
		v, rest, err := msgp.ReadUint64Bytes(b)
		if err != nil {
			return nil, rest, err
		}
		if v > math.MaxInt64 {
			return nil, rest, fmt.Errorf("%w: %d", ErrIntegerRange, v)
		}
		return ast.Integer(int64(v)), rest, nil

	case msgp.Float32Type:
		v, rest, err := msgp.ReadFloat32Bytes(b)
		if err != nil {
			return nil, rest, err
		}
		return decodeFloat(float64(v), rest)

	case msgp.Float64Type:
		v, rest, err := msgp.ReadFloat64Bytes(b)
		if err != nil {
			return nil, rest, err
		}
		return decodeFloat(v, rest)

	case msgp.StrType:
		v, rest, err := msgp.ReadStringBytes(b)
		return ast.String(v), rest, err

	case msgp.BinType:
		v, rest, err := msgp.ReadBytesBytes(b, nil)
		return ast.String(v), rest, err

	case msgp.ArrayType:
		n, rest, err := msgp.ReadArrayHeaderBytes(b)
		if err != nil {
			return nil, rest, err
		}
		arr := make(ast.Array, 0, min(int(n), len(rest)))
		for i := uint32(0); i < n; i++ {
			var elem ast.Datum
			elem, rest, err = c.decodeValue(rest, depth+1)
			if err != nil {
				return nil, rest, err
			}
			arr = append(arr, elem)
		}
		return arr, rest, nil

	case msgp.MapType:
		n, rest, err := msgp.ReadMapHeaderBytes(b)
		if err != nil {
			return nil, rest, err
		}
		size := min(int(n), len(rest))
		obj := make(ast.Object, 0, size)
		index := make(map[string]int, size)
		for i := uint32(0); i < n; i++ {
			if kt := msgp.NextType(rest); kt != msgp.StrType && kt != msgp.BinType {
				return nil, rest, fmt.Errorf("%w: got %s", ErrMapKey, kt)
			}
			var key, val ast.Datum
			key, rest, err = c.decodeValue(rest, depth+1)
			if err != nil {
				return nil, rest, err
			}
			val, rest, err = c.decodeValue(rest, depth+1)
			if err != nil {
				return nil, rest, err
			}
			k := string(key.(ast.String))
			// A repeated key overwrites the earlier value in place.
			if j, ok := index[k]; ok {
				obj[j].Value = val
				continue
			}
			index[k] = len(obj)
			obj = append(obj, ast.Pair{Key: k, Value: val})
		}
		return obj, rest, nil

	case msgp.ExtensionType:
		if !c.exactDecimals {
			return nil, b, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
		}
		var ext decimalExt
		rest, err := msgp.ReadExtensionBytes(b, &ext)
		if err != nil {
			return nil, b, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
		}
		return ast.NewDecimal(ext.d), rest, nil

	case msgp.InvalidType:
		if len(b) == 0 {
			return nil, b, msgp.ErrShortBytes
		}
		return nil, b, fmt.Errorf("%w: invalid prefix 0x%02x", ErrUnsupportedType, b[0])

	default:
		return nil, b, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

func decodeFloat(v float64, rest []byte) (ast.Datum, []byte, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, rest, fmt.Errorf("%w: non-finite float", ErrUnsupportedType)
	}
	return ast.DecimalFromFloat(v), rest, nil
}

// decimalExt carries a decimal as its string form.
type decimalExt struct {
	d decimal.Decimal
}

func (e *decimalExt) ExtensionType() int8 { return DecimalExtension }

func (e *decimalExt) Len() int { return len(e.d.String()) }

func (e *decimalExt) MarshalBinaryTo(b []byte) error {
	copy(b, e.d.String())
	return nil
}

func (e *decimalExt) UnmarshalBinary(b []byte) error {
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	e.d = d
	return nil
}
