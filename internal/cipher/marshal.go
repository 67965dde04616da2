package cipher

import "github.com/RowanDark/mardec/internal/pymarshal"

// minEmbeddedPayload is the length a bytes constant must exceed before it is
// treated as an embedded payload rather than an ordinary literal.
const minEmbeddedPayload = 100

// MarshalUnwrap deserializes a marshalled code object and returns its first
// large bytes constant. The code object itself is never decompiled.
type MarshalUnwrap struct {
	BaseCodec
}

func NewMarshalUnwrap() *MarshalUnwrap {
	return &MarshalUnwrap{BaseCodec{KindValue: KindMarshalUnwrap, DescriptionValue: "Unwrap a bytes constant embedded in a marshalled code object"}}
}

func (c *MarshalUnwrap) Attempt(in Buffer) DecodeAttempt {
	obj, err := pymarshal.Load(in.data)
	if err != nil {
		return Inapplicable()
	}
	code, ok := obj.(*pymarshal.Code)
	if !ok {
		return Inapplicable()
	}
	for _, constant := range code.Consts {
		if data, ok := constant.(pymarshal.Bytes); ok && len(data) > minEmbeddedPayload {
			return c.accept(in, Bytes(data))
		}
	}
	return Inapplicable()
}
