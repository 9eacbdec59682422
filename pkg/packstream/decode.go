package packstream

import (
	"encoding/binary"
	"math"
)

// Decode consumes exactly one value from src starting at offset 0 and
// returns the value plus the number of bytes consumed. It fails with a
// *Error wrapping ErrKindMalformed on unknown marker, truncated input, or a
// non-string map key, and ErrKindNestingTooDeep past MaxNestingDepth.
func Decode(src []byte) (Value, int, error) {
	return decodeValue(src, 0)
}

func decodeValue(src []byte, depth int) (Value, int, error) {
	if depth > MaxNestingDepth {
		return Value{}, 0, nestingTooDeep()
	}
	if len(src) == 0 {
		return Value{}, 0, malformed("unexpected end of input")
	}
	marker := src[0]
	switch {
	case marker <= tinyIntMax:
		return Int(int64(int8(marker))), 1, nil
	case marker >= 0xF0:
		return Int(int64(int8(marker))), 1, nil
	case marker&0xF0 == tinyStringBase:
		n := int(marker & 0x0F)
		return decodeFixedString(src, 1, n)
	case marker&0xF0 == tinyListBase:
		n := int(marker & 0x0F)
		return decodeFixedList(src, 1, n, depth)
	case marker&0xF0 == tinyMapBase:
		n := int(marker & 0x0F)
		return decodeFixedMap(src, 1, n, depth)
	case marker&0xF0 == tinyStructBase:
		n := int(marker & 0x0F)
		return decodeFixedStruct(src, 1, n, depth)
	}

	switch marker {
	case markerNull:
		return Null(), 1, nil
	case markerTrue:
		return Bool(true), 1, nil
	case markerFalse:
		return Bool(false), 1, nil
	case markerFloat64:
		if len(src) < 9 {
			return Value{}, 0, malformed("truncated float64")
		}
		bits := binary.BigEndian.Uint64(src[1:9])
		return Float64(math.Float64frombits(bits)), 9, nil
	case markerInt8:
		if len(src) < 2 {
			return Value{}, 0, malformed("truncated int8")
		}
		return Int(int64(int8(src[1]))), 2, nil
	case markerInt16:
		if len(src) < 3 {
			return Value{}, 0, malformed("truncated int16")
		}
		return Int(int64(int16(binary.BigEndian.Uint16(src[1:3])))), 3, nil
	case markerInt32:
		if len(src) < 5 {
			return Value{}, 0, malformed("truncated int32")
		}
		return Int(int64(int32(binary.BigEndian.Uint32(src[1:5])))), 5, nil
	case markerInt64:
		if len(src) < 9 {
			return Value{}, 0, malformed("truncated int64")
		}
		return Int(int64(binary.BigEndian.Uint64(src[1:9]))), 9, nil
	case markerBytes8:
		n, hdr, err := readLen8(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedBytes(src, hdr, n)
	case markerBytes16:
		n, hdr, err := readLen16(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedBytes(src, hdr, n)
	case markerBytes32:
		n, hdr, err := readLen32(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedBytes(src, hdr, n)
	case markerString8:
		n, hdr, err := readLen8(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedString(src, hdr, n)
	case markerString16:
		n, hdr, err := readLen16(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedString(src, hdr, n)
	case markerString32:
		n, hdr, err := readLen32(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedString(src, hdr, n)
	case markerList8:
		n, hdr, err := readLen8(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedList(src, hdr, n, depth)
	case markerList16:
		n, hdr, err := readLen16(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedList(src, hdr, n, depth)
	case markerList32:
		n, hdr, err := readLen32(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedList(src, hdr, n, depth)
	case markerMap8:
		n, hdr, err := readLen8(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedMap(src, hdr, n, depth)
	case markerMap16:
		n, hdr, err := readLen16(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedMap(src, hdr, n, depth)
	case markerMap32:
		n, hdr, err := readLen32(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedMap(src, hdr, n, depth)
	case markerStruct8:
		n, hdr, err := readLen8(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedStruct(src, hdr, n, depth)
	case markerStruct16:
		n, hdr, err := readLen16(src)
		if err != nil {
			return Value{}, 0, err
		}
		return decodeFixedStruct(src, hdr, n, depth)
	default:
		return Value{}, 0, malformed("unknown marker 0x%02X", marker)
	}
}

func readLen8(src []byte) (n int, headerLen int, err error) {
	if len(src) < 2 {
		return 0, 0, malformed("truncated length-8 header")
	}
	return int(src[1]), 2, nil
}

func readLen16(src []byte) (n int, headerLen int, err error) {
	if len(src) < 3 {
		return 0, 0, malformed("truncated length-16 header")
	}
	return int(binary.BigEndian.Uint16(src[1:3])), 3, nil
}

func readLen32(src []byte) (n int, headerLen int, err error) {
	if len(src) < 5 {
		return 0, 0, malformed("truncated length-32 header")
	}
	return int(binary.BigEndian.Uint32(src[1:5])), 5, nil
}

func decodeFixedString(src []byte, headerLen, n int) (Value, int, error) {
	if len(src) < headerLen+n {
		return Value{}, 0, malformed("truncated string payload")
	}
	return String(string(src[headerLen : headerLen+n])), headerLen + n, nil
}

func decodeFixedBytes(src []byte, headerLen, n int) (Value, int, error) {
	if len(src) < headerLen+n {
		return Value{}, 0, malformed("truncated bytes payload")
	}
	b := make([]byte, n)
	copy(b, src[headerLen:headerLen+n])
	return Raw(b), headerLen + n, nil
}

func decodeFixedList(src []byte, headerLen, n int, depth int) (Value, int, error) {
	items := make([]Value, 0, n)
	offset := headerLen
	for i := 0; i < n; i++ {
		v, consumed, err := decodeValue(src[offset:], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		items = append(items, v)
		offset += consumed
	}
	return List(items...), offset, nil
}

func decodeFixedMap(src []byte, headerLen, n int, depth int) (Value, int, error) {
	m := NewOrderedMap()
	offset := headerLen
	for i := 0; i < n; i++ {
		keyVal, consumed, err := decodeValue(src[offset:], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		offset += consumed
		if keyVal.Kind != KindString {
			return Value{}, 0, malformed("map key must be a string, got %s", keyVal.Kind)
		}
		v, consumed, err := decodeValue(src[offset:], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		offset += consumed
		// Last-wins on duplicate decode keys: Set() already does this,
		// since re-setting an existing key overwrites its value while
		// keeping its original position.
		m.Set(keyVal.Str, v)
	}
	return Map(m), offset, nil
}

func decodeFixedStruct(src []byte, headerLen, n int, depth int) (Value, int, error) {
	if len(src) < headerLen+1 {
		return Value{}, 0, malformed("truncated structure signature")
	}
	signature := src[headerLen]
	offset := headerLen + 1
	fields := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		v, consumed, err := decodeValue(src[offset:], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		fields = append(fields, v)
		offset += consumed
	}
	return Value{Kind: KindStructure, Struct: &Structure{Signature: signature, Fields: fields}}, offset, nil
}
