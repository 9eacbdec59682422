package packstream

import "fmt"

// ErrorKind classifies a packstream failure so callers can branch on cause
// without string matching.
type ErrorKind uint8

const (
	// ErrKindMalformed covers unknown markers, truncated input, and
	// non-string map keys.
	ErrKindMalformed ErrorKind = iota
	// ErrKindNestingTooDeep covers recursion past MaxNestingDepth.
	ErrKindNestingTooDeep
	// ErrKindDuplicateKey covers encoding a map with a repeated key.
	ErrKindDuplicateKey
)

// Error is the error type returned by Encode/Decode failures.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func malformed(format string, args ...any) error {
	return &Error{Kind: ErrKindMalformed, Msg: fmt.Sprintf(format, args...)}
}

func nestingTooDeep() error {
	return &Error{Kind: ErrKindNestingTooDeep, Msg: "packstream: nesting too deep"}
}

func duplicateKey(key string) error {
	return &Error{Kind: ErrKindDuplicateKey, Msg: fmt.Sprintf("packstream: duplicate map key %q", key)}
}

// MaxNestingDepth bounds recursive List/Map/Structure encode and decode to
// avoid unbounded stack growth on adversarial input.
const MaxNestingDepth = 128
