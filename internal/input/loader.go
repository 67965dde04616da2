// Package input loads files for decoding. A file that is valid UTF-8 is
// read as text with universal newlines; anything else is kept as raw bytes.
package input

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/RowanDark/mardec/internal/cipher"
)

// ErrNotFound is returned when the input file does not exist.
var ErrNotFound = errors.New("input file not found")

// MaxInputSize bounds the size of a loaded file.
const MaxInputSize = 256 << 20

// Load reads path and tags its contents.
func Load(path string) (cipher.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cipher.Buffer{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return cipher.Buffer{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read drains r and tags its contents.
func Read(r io.Reader) (cipher.Buffer, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputSize+1))
	if err != nil {
		return cipher.Buffer{}, fmt.Errorf("read input: %w", err)
	}
	if len(data) > MaxInputSize {
		return cipher.Buffer{}, fmt.Errorf("read input: larger than %d bytes", MaxInputSize)
	}
	return FromBytes(data), nil
}

// FromBytes tags data as text when it is valid UTF-8 and as bytes otherwise.
// Text has CRLF and lone CR line endings rewritten to LF.
func FromBytes(data []byte) cipher.Buffer {
	if !utf8.Valid(data) {
		return cipher.Bytes(data)
	}
	return cipher.TextBytes(normalizeNewlines(data))
}

func normalizeNewlines(data []byte) []byte {
	if bytes.IndexByte(data, '\r') < 0 {
		return data
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
}
