package cipher

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Buffer is an immutable byte sequence tagged as either text or raw bytes.
// Every decode step produces a new Buffer; the backing slice is never shared
// with callers.
type Buffer struct {
	data []byte
	text bool
}

// Text wraps s as a text-tagged buffer.
func Text(s string) Buffer {
	return Buffer{data: []byte(s), text: true}
}

// TextBytes wraps b, assumed to be UTF-8 encoded, as a text-tagged buffer.
func TextBytes(b []byte) Buffer {
	return Buffer{data: bytes.Clone(b), text: true}
}

// Bytes wraps b as a raw byte buffer.
func Bytes(b []byte) Buffer {
	return Buffer{data: bytes.Clone(b)}
}

// IsText reports whether the buffer is interpreted as text.
func (b Buffer) IsText() bool { return b.text }

// Len returns the number of bytes held by the buffer.
func (b Buffer) Len() int { return len(b.data) }

// Size is the length reported for layer records: characters for text
// buffers and bytes for raw buffers.
func (b Buffer) Size() int {
	if b.text {
		return utf8.RuneCount(b.data)
	}
	return len(b.data)
}

// Data returns a copy of the underlying bytes.
func (b Buffer) Data() []byte { return bytes.Clone(b.data) }

// Equal reports whether both buffers hold the same content, ignoring the tag.
func (b Buffer) Equal(other Buffer) bool { return bytes.Equal(b.data, other.data) }

// View returns the text used for classification and pattern matching. Raw
// buffers are decoded as UTF-8 with undecodable bytes dropped.
func (b Buffer) View() string {
	if b.text {
		return string(b.data)
	}
	return strings.ToValidUTF8(string(b.data), "")
}

// Text coerces the buffer to a final string: UTF-8 when valid, then
// Latin-1, then a lossy UTF-8 rendering.
func (b Buffer) Text() string {
	if b.text || utf8.Valid(b.data) {
		return string(b.data)
	}
	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b.data); err == nil {
		return string(decoded)
	}
	return strings.ToValidUTF8(string(b.data), "")
}

func (b Buffer) String() string {
	kind := "bytes"
	if b.text {
		kind = "text"
	}
	return fmt.Sprintf("%s(%d)", kind, len(b.data))
}

// CodecKind names a decode attempt. The set is closed.
type CodecKind int

const (
	KindNone CodecKind = iota
	KindWrapperExtraction
	KindRot13
	KindMarshalUnwrap
	KindZlib
	KindGzip
	KindBz2
	KindBase64
	KindBase32
	KindBase85
	KindHex
	KindZstd
	KindLZ4
)

var kindNames = map[CodecKind]string{
	KindNone:              "none",
	KindWrapperExtraction: "exec_extraction",
	KindRot13:             "rot13",
	KindMarshalUnwrap:     "marshal",
	KindZlib:              "zlib",
	KindGzip:              "gzip",
	KindBz2:               "bz2",
	KindBase64:            "base64",
	KindBase32:            "base32",
	KindBase85:            "base85",
	KindHex:               "hex",
	KindZstd:              "zstd",
	KindLZ4:               "lz4",
}

func (k CodecKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("codec(%d)", int(k))
}

// MarshalText renders the kind by name so records serialize readably.
func (k CodecKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind previously produced by MarshalText.
func (k *CodecKind) UnmarshalText(data []byte) error {
	parsed, err := ParseCodecKind(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseCodecKind resolves a codec name. "exec" and "wrapper" are accepted
// as aliases for exec_extraction.
func ParseCodecKind(name string) (CodecKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "exec", "wrapper":
		return KindWrapperExtraction, nil
	}
	for kind, kindName := range kindNames {
		if kindName == normalized {
			return kind, nil
		}
	}
	return KindNone, fmt.Errorf("unknown codec %q", name)
}

// DecodeAttempt is the outcome of one codec trial. When OK is set the
// payload is non-empty and differs from the input by content.
type DecodeAttempt struct {
	OK      bool
	Payload Buffer
	Kind    CodecKind
}

// Inapplicable is the attempt returned when no codec made progress.
func Inapplicable() DecodeAttempt {
	return DecodeAttempt{Kind: KindNone}
}

// Codec is a total decode attempt: it either yields a successor buffer or
// reports itself inapplicable. Implementations never panic or return errors.
type Codec interface {
	Kind() CodecKind
	Description() string
	Attempt(in Buffer) DecodeAttempt
}

// BaseCodec carries the identity shared by every codec.
type BaseCodec struct {
	KindValue        CodecKind
	DescriptionValue string
}

func (b *BaseCodec) Kind() CodecKind { return b.KindValue }

func (b *BaseCodec) Description() string { return b.DescriptionValue }

func (b *BaseCodec) accept(in, out Buffer) DecodeAttempt {
	if out.Len() == 0 || out.Equal(in) {
		return Inapplicable()
	}
	return DecodeAttempt{OK: true, Payload: out, Kind: b.KindValue}
}
