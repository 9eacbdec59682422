package packstream

// OrderedMap is a String-keyed map that preserves insertion order, needed
// because PackStream serialization is order-sensitive: two maps with the
// same entries in different insertion order encode to different byte
// sequences, which matters for wire-level test determinism.
type OrderedMap struct {
	keys   []string
	values map[string]Value
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]Value)}
}

// Set inserts or updates key. Updating an existing key keeps its original
// position; inserting a new key appends it.
func (m *OrderedMap) Set(key string, v Value) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order. Callers must not mutate the
// returned slice.
func (m *OrderedMap) Keys() []string { return m.keys }

// Range calls fn for every entry in insertion order.
func (m *OrderedMap) Range(fn func(key string, v Value)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Equal reports whether m and other have the same keys in the same order
// with structurally equal values. Used by tests for round-trip assertions.
func (m *OrderedMap) Equal(other *OrderedMap) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.keys) != len(other.keys) {
		return false
	}
	for i, k := range m.keys {
		if other.keys[i] != k {
			return false
		}
		if !valuesEqual(m.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBoolean:
		return a.Bool == b.Bool
	case KindInteger:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindString:
		return a.Str == b.Str
	case KindBytes:
		if len(a.Bytes) != len(b.Bytes) {
			return false
		}
		for i := range a.Bytes {
			if a.Bytes[i] != b.Bytes[i] {
				return false
			}
		}
		return true
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !valuesEqual(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return a.Map.Equal(b.Map)
	case KindStructure:
		if a.Struct.Signature != b.Struct.Signature || len(a.Struct.Fields) != len(b.Struct.Fields) {
			return false
		}
		for i := range a.Struct.Fields {
			if !valuesEqual(a.Struct.Fields[i], b.Struct.Fields[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Equal reports structural equality between two values, descending into
// lists, maps and structures. Exported for use by tests outside this
// package.
func Equal(a, b Value) bool { return valuesEqual(a, b) }
