package pymarshal

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

const (
	flagRef  = 0x80
	maxDepth = 2000
)

const (
	typeNull          = '0'
	typeNone          = 'N'
	typeFalse         = 'F'
	typeTrue          = 'T'
	typeStopIter      = 'S'
	typeEllipsis      = '.'
	typeInt           = 'i'
	typeInt64         = 'I'
	typeFloat         = 'f'
	typeBinaryFloat   = 'g'
	typeComplex       = 'x'
	typeBinaryComplex = 'y'
	typeLong          = 'l'
	typeString        = 's'
	typeInterned      = 't'
	typeRef           = 'r'
	typeTuple         = '('
	typeSmallTuple    = ')'
	typeList          = '['
	typeDict          = '{'
	typeCode          = 'c'
	typeUnicode       = 'u'
	typeSet           = '<'
	typeFrozenSet     = '>'
	typeASCII         = 'a'
	typeASCIIInterned = 'A'
	typeShortASCII    = 'z'
	typeShortInterned = 'Z'
)

// Load decodes the first marshalled object in data. Trailing bytes are
// ignored. Code objects are parsed with each supported layout in turn, newest
// first, and the first layout that consumes the object cleanly wins.
func Load(data []byte) (Object, error) {
	if len(data) == 0 {
		return nil, ErrTruncated
	}
	if data[0]&^flagRef != typeCode {
		r := &reader{data: data, layout: Layout311}
		return r.object(0)
	}
	var firstErr error
	for _, layout := range []Layout{Layout311, Layout38, Layout30} {
		r := &reader{data: data, layout: layout}
		obj, err := r.object(0)
		if err == nil {
			return obj, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrNoLayout, firstErr)
}

type reader struct {
	data   []byte
	pos    int
	refs   []Object
	layout Layout
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || n > len(r.data)-r.pos {
		return nil, ErrTruncated
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) int32() (int32, error) {
	buf, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf)), nil
}

// length reads a non-negative int32 size that must fit in the remaining input
// when each element occupies at least minElem bytes.
func (r *reader) length(minElem int) (int, error) {
	n, err := r.int32()
	if err != nil {
		return 0, err
	}
	if n < 0 || int(n)*minElem > len(r.data)-r.pos {
		return 0, ErrTooLarge
	}
	return int(n), nil
}

func (r *reader) reserve(flagged bool) int {
	if !flagged {
		return -1
	}
	r.refs = append(r.refs, nil)
	return len(r.refs) - 1
}

func (r *reader) fill(idx int, obj Object) Object {
	if idx >= 0 {
		r.refs[idx] = obj
	}
	return obj
}

func (r *reader) object(depth int) (Object, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}
	code, err := r.byte()
	if err != nil {
		return nil, err
	}
	flagged := code&flagRef != 0
	code &^= flagRef

	switch code {
	case typeNull, typeNone:
		return r.fill(r.reserve(flagged), nil), nil
	case typeFalse:
		return r.fill(r.reserve(flagged), false), nil
	case typeTrue:
		return r.fill(r.reserve(flagged), true), nil
	case typeStopIter:
		return r.fill(r.reserve(flagged), StopIteration), nil
	case typeEllipsis:
		return r.fill(r.reserve(flagged), Ellipsis), nil
	case typeInt:
		v, err := r.int32()
		if err != nil {
			return nil, err
		}
		return r.fill(r.reserve(flagged), int64(v)), nil
	case typeInt64:
		buf, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return r.fill(r.reserve(flagged), int64(binary.LittleEndian.Uint64(buf))), nil
	case typeLong:
		return r.long(flagged)
	case typeFloat, typeComplex:
		return r.textFloat(code, flagged)
	case typeBinaryFloat:
		buf, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return r.fill(r.reserve(flagged), math.Float64frombits(binary.LittleEndian.Uint64(buf))), nil
	case typeBinaryComplex:
		buf, err := r.take(16)
		if err != nil {
			return nil, err
		}
		re := math.Float64frombits(binary.LittleEndian.Uint64(buf[:8]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(buf[8:]))
		return r.fill(r.reserve(flagged), complex(re, im)), nil
	case typeString:
		n, err := r.length(1)
		if err != nil {
			return nil, err
		}
		buf, _ := r.take(n)
		return r.fill(r.reserve(flagged), Bytes(append([]byte(nil), buf...))), nil
	case typeInterned, typeUnicode, typeASCII, typeASCIIInterned:
		n, err := r.length(1)
		if err != nil {
			return nil, err
		}
		buf, _ := r.take(n)
		return r.fill(r.reserve(flagged), string(buf)), nil
	case typeShortASCII, typeShortInterned:
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		buf, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		return r.fill(r.reserve(flagged), string(buf)), nil
	case typeSmallTuple:
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		return r.sequence(int(n), flagged, depth, func(items []Object) Object { return Tuple(items) })
	case typeTuple:
		n, err := r.length(1)
		if err != nil {
			return nil, err
		}
		return r.sequence(n, flagged, depth, func(items []Object) Object { return Tuple(items) })
	case typeList:
		n, err := r.length(1)
		if err != nil {
			return nil, err
		}
		return r.sequence(n, flagged, depth, func(items []Object) Object { return List(items) })
	case typeSet:
		n, err := r.length(1)
		if err != nil {
			return nil, err
		}
		return r.sequence(n, flagged, depth, func(items []Object) Object { return Set(items) })
	case typeFrozenSet:
		n, err := r.length(1)
		if err != nil {
			return nil, err
		}
		return r.sequence(n, flagged, depth, func(items []Object) Object { return FrozenSet(items) })
	case typeDict:
		return r.dict(flagged, depth)
	case typeRef:
		idx, err := r.int32()
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(r.refs) {
			return nil, ErrBadRef
		}
		return r.refs[idx], nil
	case typeCode:
		return r.code(flagged, depth)
	default:
		return nil, fmt.Errorf("%w %q at offset %d", ErrUnknownType, code, r.pos-1)
	}
}

func (r *reader) long(flagged bool) (Object, error) {
	n, err := r.int32()
	if err != nil {
		return nil, err
	}
	size := int(n)
	negative := size < 0
	if negative {
		size = -size
	}
	if size*2 > len(r.data)-r.pos {
		return nil, ErrTooLarge
	}
	digits := make([]uint16, size)
	for i := range digits {
		buf, _ := r.take(2)
		digits[i] = binary.LittleEndian.Uint16(buf)
		if digits[i] >= 1<<15 {
			return nil, fmt.Errorf("pymarshal: long digit out of range")
		}
	}
	return r.fill(r.reserve(flagged), Long{Negative: negative, Digits: digits}), nil
}

func (r *reader) textFloat(code byte, flagged bool) (Object, error) {
	parse := func() (float64, error) {
		n, err := r.byte()
		if err != nil {
			return 0, err
		}
		buf, err := r.take(int(n))
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(string(buf), 64)
	}
	re, err := parse()
	if err != nil {
		return nil, err
	}
	if code == typeFloat {
		return r.fill(r.reserve(flagged), re), nil
	}
	im, err := parse()
	if err != nil {
		return nil, err
	}
	return r.fill(r.reserve(flagged), complex(re, im)), nil
}

func (r *reader) sequence(n int, flagged bool, depth int, build func([]Object) Object) (Object, error) {
	idx := r.reserve(flagged)
	items := make([]Object, 0, n)
	for i := 0; i < n; i++ {
		item, err := r.object(depth + 1)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return r.fill(idx, build(items)), nil
}

func (r *reader) dict(flagged bool, depth int) (Object, error) {
	idx := r.reserve(flagged)
	d := &Dict{}
	for {
		if r.pos >= len(r.data) {
			return nil, ErrTruncated
		}
		if r.data[r.pos] == typeNull {
			r.pos++
			break
		}
		key, err := r.object(depth + 1)
		if err != nil {
			return nil, err
		}
		value, err := r.object(depth + 1)
		if err != nil {
			return nil, err
		}
		d.Keys = append(d.Keys, key)
		d.Values = append(d.Values, value)
	}
	return r.fill(idx, d), nil
}

func (r *reader) code(flagged bool, depth int) (Object, error) {
	idx := r.reserve(flagged)
	header := make([]int32, r.layout.headerInts())
	for i := range header {
		v, err := r.int32()
		if err != nil {
			return nil, err
		}
		header[i] = v
	}
	c := &Code{Layout: r.layout, ArgCount: header[0], Flags: header[len(header)-1]}

	bytecode, err := r.object(depth + 1)
	if err != nil {
		return nil, err
	}
	raw, ok := bytecode.(Bytes)
	if !ok {
		return nil, fmt.Errorf("pymarshal: code object bytecode is %T, not bytes", bytecode)
	}
	c.Bytecode = raw

	consts, err := r.tuple(depth)
	if err != nil {
		return nil, fmt.Errorf("pymarshal: code consts: %w", err)
	}
	c.Consts = consts
	if c.Names, err = r.tuple(depth); err != nil {
		return nil, fmt.Errorf("pymarshal: code names: %w", err)
	}

	// Fields between names and filename: localsplusnames and
	// localspluskinds on 3.11+, varnames, freevars and cellvars before.
	skip := 3
	if r.layout == Layout311 {
		skip = 2
	}
	for i := 0; i < skip; i++ {
		if _, err := r.object(depth + 1); err != nil {
			return nil, err
		}
	}
	if c.Filename, err = r.str(depth); err != nil {
		return nil, fmt.Errorf("pymarshal: code filename: %w", err)
	}
	if c.Name, err = r.str(depth); err != nil {
		return nil, fmt.Errorf("pymarshal: code name: %w", err)
	}
	if r.layout == Layout311 {
		if _, err := r.str(depth); err != nil {
			return nil, fmt.Errorf("pymarshal: code qualname: %w", err)
		}
	}
	if c.FirstLineNo, err = r.int32(); err != nil {
		return nil, err
	}
	tables := 1
	if r.layout == Layout311 {
		tables = 2
	}
	for i := 0; i < tables; i++ {
		table, err := r.object(depth + 1)
		if err != nil {
			return nil, err
		}
		if _, ok := table.(Bytes); !ok {
			return nil, fmt.Errorf("pymarshal: code line table is %T, not bytes", table)
		}
	}
	return r.fill(idx, c), nil
}

func (r *reader) tuple(depth int) ([]Object, error) {
	obj, err := r.object(depth + 1)
	if err != nil {
		return nil, err
	}
	switch v := obj.(type) {
	case Tuple:
		return v, nil
	case List:
		return v, nil
	default:
		return nil, fmt.Errorf("expected tuple, got %T", obj)
	}
}

func (r *reader) str(depth int) (string, error) {
	obj, err := r.object(depth + 1)
	if err != nil {
		return "", err
	}
	s, ok := obj.(string)
	if !ok {
		return "", fmt.Errorf("expected str, got %T", obj)
	}
	return s, nil
}
