// Package pymarshal reads the CPython marshal format far enough to reach the
// constants embedded in a serialized code object. It does not interpret
// bytecode.
package pymarshal

import "errors"

var (
	ErrTruncated   = errors.New("pymarshal: truncated data")
	ErrUnknownType = errors.New("pymarshal: unknown type code")
	ErrBadRef      = errors.New("pymarshal: invalid back reference")
	ErrTooDeep     = errors.New("pymarshal: nesting too deep")
	ErrTooLarge    = errors.New("pymarshal: length exceeds input")
	ErrNoLayout    = errors.New("pymarshal: no code object layout matched")
)

// Object is any decoded marshal value:
//
//	nil        None or NULL
//	bool       True, False
//	int64      small ints; Long for arbitrary precision
//	float64    floats
//	complex128 complex numbers
//	Bytes      bytes
//	string     str
//	Tuple, List, Set, FrozenSet, *Dict, *Code
//	Ellipsis, StopIteration
type Object any

// Bytes is a decoded bytes object, kept distinct from str values.
type Bytes []byte

type Tuple []Object

type List []Object

type Set []Object

type FrozenSet []Object

// Long holds an arbitrary precision int as little-endian 15-bit digits.
type Long struct {
	Negative bool
	Digits   []uint16
}

// Dict preserves insertion order.
type Dict struct {
	Keys   []Object
	Values []Object
}

type ellipsis struct{}

type stopIteration struct{}

var (
	Ellipsis      Object = ellipsis{}
	StopIteration Object = stopIteration{}
)

// Code is a deserialized code object. Only the fields shared by every
// supported interpreter layout are exposed.
type Code struct {
	ArgCount    int32
	Flags       int32
	Bytecode    []byte
	Consts      []Object
	Names       []Object
	Filename    string
	Name        string
	FirstLineNo int32
	Layout      Layout
}

// Layout identifies the field order of a serialized code object.
type Layout int

const (
	// Layout311 covers CPython 3.11 and later.
	Layout311 Layout = iota
	// Layout38 covers CPython 3.8 through 3.10.
	Layout38
	// Layout30 covers CPython 3.0 through 3.7.
	Layout30
)

func (l Layout) String() string {
	switch l {
	case Layout311:
		return "3.11+"
	case Layout38:
		return "3.8-3.10"
	case Layout30:
		return "3.0-3.7"
	default:
		return "unknown"
	}
}

// headerInts is the number of int32 fields preceding the bytecode.
func (l Layout) headerInts() int {
	if l == Layout38 {
		return 6
	}
	return 5
}
