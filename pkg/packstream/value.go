// Package packstream implements the PackStream binary serialization format
// used by the Bolt wire protocol: a self-describing, marker-byte-driven
// encoding for a small set of primitive and composite value types.
package packstream

import "fmt"

// Kind identifies the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindStructure
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBoolean:
		return "Boolean"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindStructure:
		return "Structure"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a tagged PackStream value. Exactly one of the typed fields is
// meaningful, selected by Kind. Zero value is Null.
type Value struct {
	Kind Kind

	Bool    bool
	Int     int64
	Float   float64
	Str     string
	Bytes   []byte
	List    []Value
	Map     *OrderedMap
	Struct  *Structure
}

// Structure is a PackStream structure: a one-byte signature plus an ordered
// list of field values. Messages in the Bolt protocol are structures.
type Structure struct {
	Signature byte
	Fields    []Value
}

// Null is the PackStream null value.
func Null() Value { return Value{Kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// Int wraps a signed 64-bit integer.
func Int(i int64) Value { return Value{Kind: KindInteger, Int: i} }

// Float64 wraps an IEEE-754 double.
func Float64(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// String wraps a UTF-8 string.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Raw wraps a binary blob.
func Raw(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// List wraps an ordered sequence of values.
func List(items ...Value) Value { return Value{Kind: KindList, List: items} }

// Map wraps an OrderedMap.
func Map(m *OrderedMap) Value { return Value{Kind: KindMap, Map: m} }

// Struct wraps a Structure.
func Struct(signature byte, fields ...Value) Value {
	return Value{Kind: KindStructure, Struct: &Structure{Signature: signature, Fields: fields}}
}

// IsNull reports whether v is the Null value.
func (v Value) IsNull() bool { return v.Kind == KindNull }
