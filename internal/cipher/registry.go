package cipher

import (
	"fmt"
	"strings"
)

// Order selects how compression and base-encoding codecs are ranked.
type Order int

const (
	// OrderCompressionFirst tries Zlib, Gzip and Bz2 before the base
	// encodings.
	OrderCompressionFirst Order = iota
	// OrderEncodingFirst tries Base64, Base32 and Base85 before the
	// compression codecs.
	OrderEncodingFirst
)

func (o Order) String() string {
	switch o {
	case OrderEncodingFirst:
		return "encoding-first"
	default:
		return "compression-first"
	}
}

// ParseOrder resolves an order name as written in configuration.
func ParseOrder(name string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "compression-first":
		return OrderCompressionFirst, nil
	case "encoding-first":
		return OrderEncodingFirst, nil
	default:
		return OrderCompressionFirst, fmt.Errorf("unknown codec order %q", name)
	}
}

// Set is a fixed, ordered collection of codecs. The first codec that
// succeeds decides a layer.
type Set struct {
	codecs []Codec
}

type setConfig struct {
	order    Order
	extended bool
	disabled map[CodecKind]struct{}
}

// SetOption customizes NewSet.
type SetOption func(*setConfig)

// WithOrder ranks compression against base encodings.
func WithOrder(order Order) SetOption {
	return func(cfg *setConfig) { cfg.order = order }
}

// WithExtended appends Zstd and LZ4 frame decompression after Hex.
func WithExtended(enabled bool) SetOption {
	return func(cfg *setConfig) { cfg.extended = enabled }
}

// WithoutCodecs drops the named kinds from the set.
func WithoutCodecs(kinds ...CodecKind) SetOption {
	return func(cfg *setConfig) {
		for _, kind := range kinds {
			cfg.disabled[kind] = struct{}{}
		}
	}
}

// NewSet builds the default codec set. Without options the order is
// WrapperExtraction, Rot13, MarshalUnwrap, Zlib, Gzip, Bz2, Base64, Base32,
// Base85, Hex.
func NewSet(opts ...SetOption) *Set {
	cfg := &setConfig{disabled: make(map[CodecKind]struct{})}
	for _, opt := range opts {
		opt(cfg)
	}

	textual := []Codec{NewWrapperExtraction(), NewRot13(), NewMarshalUnwrap()}
	compression := []Codec{NewZlib(), NewGzip(), NewBz2()}
	encodings := []Codec{NewBase64(), NewBase32(), NewBase85()}

	ordered := append([]Codec{}, textual...)
	if cfg.order == OrderEncodingFirst {
		ordered = append(ordered, encodings...)
		ordered = append(ordered, compression...)
	} else {
		ordered = append(ordered, compression...)
		ordered = append(ordered, encodings...)
	}
	ordered = append(ordered, NewHex())
	if cfg.extended {
		ordered = append(ordered, NewZstd(), NewLZ4())
	}

	set := &Set{}
	for _, codec := range ordered {
		if _, skip := cfg.disabled[codec.Kind()]; skip {
			continue
		}
		// Kinds above are unique, so Register cannot fail here.
		_ = set.Register(codec)
	}
	return set
}

// Register appends codec at the lowest priority.
func (s *Set) Register(codec Codec) error {
	if codec == nil {
		return fmt.Errorf("cannot register nil codec")
	}
	if codec.Kind() == KindNone {
		return fmt.Errorf("codec kind %s is reserved", KindNone)
	}
	if _, exists := s.Lookup(codec.Kind()); exists {
		return fmt.Errorf("codec %s is already registered", codec.Kind())
	}
	s.codecs = append(s.codecs, codec)
	return nil
}

// Lookup returns the codec registered for kind.
func (s *Set) Lookup(kind CodecKind) (Codec, bool) {
	for _, codec := range s.codecs {
		if codec.Kind() == kind {
			return codec, true
		}
	}
	return nil, false
}

// Kinds lists the registered kinds in application order.
func (s *Set) Kinds() []CodecKind {
	kinds := make([]CodecKind, 0, len(s.codecs))
	for _, codec := range s.codecs {
		kinds = append(kinds, codec.Kind())
	}
	return kinds
}

// Decode runs the codecs in order and returns the first success, or an
// inapplicable attempt when none applies.
func (s *Set) Decode(in Buffer) DecodeAttempt {
	for _, codec := range s.codecs {
		if attempt := try(codec, in); attempt.OK {
			return attempt
		}
	}
	return Inapplicable()
}

// try shields the loop from a codec that breaks its contract.
func try(codec Codec, in Buffer) (attempt DecodeAttempt) {
	defer func() {
		if recover() != nil {
			attempt = Inapplicable()
		}
	}()
	attempt = codec.Attempt(in)
	if attempt.OK && (attempt.Payload.Len() == 0 || attempt.Payload.Equal(in)) {
		return Inapplicable()
	}
	return attempt
}
