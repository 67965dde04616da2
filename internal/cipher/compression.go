package cipher

import (
	"bytes"
	"compress/bzip2"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// MaxDecodedSize bounds the output of a single decompression step.
const MaxDecodedSize = 64 << 20

// readBounded drains r, failing when the stream is malformed or expands past
// MaxDecodedSize.
func readBounded(r io.Reader) ([]byte, bool) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxDecodedSize+1))
	if err != nil || n > MaxDecodedSize {
		return nil, false
	}
	return buf.Bytes(), true
}

// ZlibCodec inflates a zlib stream.
type ZlibCodec struct {
	BaseCodec
}

func NewZlib() *ZlibCodec {
	return &ZlibCodec{BaseCodec{KindValue: KindZlib, DescriptionValue: "Inflate zlib data"}}
}

func (c *ZlibCodec) Attempt(in Buffer) DecodeAttempt {
	reader, err := zlib.NewReader(bytes.NewReader(in.data))
	if err != nil {
		return Inapplicable()
	}
	defer reader.Close()
	out, ok := readBounded(reader)
	if !ok {
		return Inapplicable()
	}
	return c.accept(in, Bytes(out))
}

// GzipCodec decompresses one or more concatenated gzip members.
type GzipCodec struct {
	BaseCodec
}

func NewGzip() *GzipCodec {
	return &GzipCodec{BaseCodec{KindValue: KindGzip, DescriptionValue: "Decompress gzip data"}}
}

func (c *GzipCodec) Attempt(in Buffer) DecodeAttempt {
	reader, err := gzip.NewReader(bytes.NewReader(in.data))
	if err != nil {
		return Inapplicable()
	}
	defer reader.Close()
	out, ok := readBounded(reader)
	if !ok {
		return Inapplicable()
	}
	return c.accept(in, Bytes(out))
}

// Bz2Codec decompresses bzip2 data.
type Bz2Codec struct {
	BaseCodec
}

func NewBz2() *Bz2Codec {
	return &Bz2Codec{BaseCodec{KindValue: KindBz2, DescriptionValue: "Decompress bzip2 data"}}
}

func (c *Bz2Codec) Attempt(in Buffer) DecodeAttempt {
	out, ok := readBounded(bzip2.NewReader(bytes.NewReader(in.data)))
	if !ok {
		return Inapplicable()
	}
	return c.accept(in, Bytes(out))
}

// ZstdCodec decompresses a zstd frame. Only part of the extended set.
type ZstdCodec struct {
	BaseCodec
}

func NewZstd() *ZstdCodec {
	return &ZstdCodec{BaseCodec{KindValue: KindZstd, DescriptionValue: "Decompress zstd frames"}}
}

func (c *ZstdCodec) Attempt(in Buffer) DecodeAttempt {
	decoder, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(MaxDecodedSize),
	)
	if err != nil {
		return Inapplicable()
	}
	defer decoder.Close()
	out, err := decoder.DecodeAll(in.data, nil)
	if err != nil {
		return Inapplicable()
	}
	return c.accept(in, Bytes(out))
}

// LZ4Codec decompresses an LZ4 frame. Only part of the extended set.
type LZ4Codec struct {
	BaseCodec
}

func NewLZ4() *LZ4Codec {
	return &LZ4Codec{BaseCodec{KindValue: KindLZ4, DescriptionValue: "Decompress LZ4 frames"}}
}

func (c *LZ4Codec) Attempt(in Buffer) DecodeAttempt {
	out, ok := readBounded(lz4.NewReader(bytes.NewReader(in.data)))
	if !ok {
		return Inapplicable()
	}
	return c.accept(in, Bytes(out))
}
