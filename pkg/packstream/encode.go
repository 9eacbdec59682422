package packstream

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Marker bytes, per the PackStream wire format.
const (
	markerNull    byte = 0xC0
	markerFloat64 byte = 0xC1
	markerFalse   byte = 0xC2
	markerTrue    byte = 0xC3

	markerBytes8  byte = 0xCC
	markerBytes16 byte = 0xCD
	markerBytes32 byte = 0xCE

	markerInt8  byte = 0xC8
	markerInt16 byte = 0xC9
	markerInt32 byte = 0xCA
	markerInt64 byte = 0xCB

	markerString8  byte = 0xD0
	markerString16 byte = 0xD1
	markerString32 byte = 0xD2

	markerList8  byte = 0xD4
	markerList16 byte = 0xD5
	markerList32 byte = 0xD6

	markerMap8  byte = 0xD8
	markerMap16 byte = 0xD9
	markerMap32 byte = 0xDA

	markerStruct8  byte = 0xDC
	markerStruct16 byte = 0xDD

	tinyIntMax      = 127
	tinyIntNegMin   = -16
	tinyStringBase  = 0x80
	tinyListBase    = 0x90
	tinyMapBase     = 0xA0
	tinyStructBase  = 0xB0
	tinyNibbleLimit = 0x0F
)

// Encode appends the PackStream encoding of v to dst and returns the
// extended slice. It picks the smallest marker that fits the value.
func Encode(dst []byte, v Value) ([]byte, error) {
	return encodeValue(dst, v, 0)
}

func encodeValue(dst []byte, v Value, depth int) ([]byte, error) {
	if depth > MaxNestingDepth {
		return nil, nestingTooDeep()
	}
	switch v.Kind {
	case KindNull:
		return append(dst, markerNull), nil
	case KindBoolean:
		if v.Bool {
			return append(dst, markerTrue), nil
		}
		return append(dst, markerFalse), nil
	case KindInteger:
		return encodeInt(dst, v.Int), nil
	case KindFloat:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(v.Float))
		return append(append(dst, markerFloat64), buf...), nil
	case KindString:
		return encodeString(dst, v.Str), nil
	case KindBytes:
		return encodeBytes(dst, v.Bytes), nil
	case KindList:
		return encodeList(dst, v.List, depth)
	case KindMap:
		return encodeMap(dst, v.Map, depth)
	case KindStructure:
		return encodeStructure(dst, v.Struct, depth)
	default:
		return nil, malformed("unknown value kind %d", v.Kind)
	}
}

func encodeInt(dst []byte, i int64) []byte {
	switch {
	case i >= tinyIntNegMin && i <= tinyIntMax:
		return append(dst, byte(int8(i)))
	case i >= math.MinInt8 && i <= math.MaxInt8:
		return append(dst, markerInt8, byte(int8(i)))
	case i >= math.MinInt16 && i <= math.MaxInt16:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(i)))
		return append(append(dst, markerInt16), buf...)
	case i >= math.MinInt32 && i <= math.MaxInt32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(i)))
		return append(append(dst, markerInt32), buf...)
	default:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(i))
		return append(append(dst, markerInt64), buf...)
	}
}

func encodeString(dst []byte, s string) []byte {
	n := len(s)
	switch {
	case n <= tinyNibbleLimit:
		dst = append(dst, byte(tinyStringBase+n))
	case n <= math.MaxUint8:
		dst = append(dst, markerString8, byte(n))
	case n <= math.MaxUint16:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(n))
		dst = append(append(dst, markerString16), buf...)
	default:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(n))
		dst = append(append(dst, markerString32), buf...)
	}
	return append(dst, s...)
}

// encodeBytes always uses an explicit length-prefixed marker (no tiny form
// exists for Bytes in PackStream).
func encodeBytes(dst []byte, b []byte) []byte {
	n := len(b)
	switch {
	case n <= math.MaxUint8:
		dst = append(dst, markerBytes8, byte(n))
	case n <= math.MaxUint16:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(n))
		dst = append(append(dst, markerBytes16), buf...)
	default:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(n))
		dst = append(append(dst, markerBytes32), buf...)
	}
	return append(dst, b...)
}

func encodeList(dst []byte, items []Value, depth int) ([]byte, error) {
	dst = encodeCollectionHeader(dst, tinyListBase, markerList8, markerList16, markerList32, len(items))
	for _, item := range items {
		var err error
		dst, err = encodeValue(dst, item, depth+1)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func encodeMap(dst []byte, m *OrderedMap, depth int) ([]byte, error) {
	if m == nil {
		m = NewOrderedMap()
	}
	seen := make(map[string]struct{}, m.Len())
	for _, k := range m.Keys() {
		if _, dup := seen[k]; dup {
			return nil, duplicateKey(k)
		}
		seen[k] = struct{}{}
	}
	dst = encodeCollectionHeader(dst, tinyMapBase, markerMap8, markerMap16, markerMap32, m.Len())
	var err error
	m.Range(func(key string, v Value) {
		if err != nil {
			return
		}
		dst = encodeString(dst, key)
		dst, err = encodeValue(dst, v, depth+1)
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

func encodeStructure(dst []byte, s *Structure, depth int) ([]byte, error) {
	n := len(s.Fields)
	switch {
	case n <= tinyNibbleLimit:
		dst = append(dst, byte(tinyStructBase+n))
	case n <= math.MaxUint8:
		dst = append(dst, markerStruct8, byte(n))
	default:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(n))
		dst = append(append(dst, markerStruct16), buf...)
	}
	dst = append(dst, s.Signature)
	for _, f := range s.Fields {
		var err error
		dst, err = encodeValue(dst, f, depth+1)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func encodeCollectionHeader(dst []byte, tinyBase, m8, m16, m32 byte, n int) []byte {
	switch {
	case n <= tinyNibbleLimit:
		return append(dst, byte(int(tinyBase)+n))
	case n <= math.MaxUint8:
		return append(dst, m8, byte(n))
	case n <= math.MaxUint16:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(n))
		return append(append(dst, m16), buf...)
	default:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(n))
		return append(append(dst, m32), buf...)
	}
}

// EncodeToBytes is a convenience wrapper returning a freshly allocated slice.
func EncodeToBytes(v Value) ([]byte, error) {
	var buf bytes.Buffer
	b, err := Encode(buf.Bytes(), v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
