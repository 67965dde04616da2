package cipher

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"unicode"
)

const (
	base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/="
	base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567="
	// RFC 1924 alphabet, as produced by Python's base64.b85encode.
	base85Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz!#$%&()*+-;<=>?@^_`{|}~"
)

var base85Table = func() [256]int {
	var table [256]int
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(base85Alphabet); i++ {
		table[base85Alphabet[i]] = i
	}
	return table
}()

// onlyAlphabet reports whether every byte of data occurs in alphabet. The
// standard library decoders silently skip CR and LF; this check rejects them.
func onlyAlphabet(data []byte, alphabet string) bool {
	for _, c := range data {
		if strings.IndexByte(alphabet, c) < 0 {
			return false
		}
	}
	return true
}

// Base64Codec strictly decodes standard Base64 after trimming surrounding
// whitespace.
type Base64Codec struct {
	BaseCodec
}

func NewBase64() *Base64Codec {
	return &Base64Codec{BaseCodec{KindValue: KindBase64, DescriptionValue: "Decode standard Base64"}}
}

func (c *Base64Codec) Attempt(in Buffer) DecodeAttempt {
	data := bytes.TrimSpace(in.data)
	if len(data) == 0 || !onlyAlphabet(data, base64Alphabet) {
		return Inapplicable()
	}
	decoded, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return Inapplicable()
	}
	return c.accept(in, Bytes(decoded))
}

// Base32Codec decodes padded upper-case RFC 4648 Base32.
type Base32Codec struct {
	BaseCodec
}

func NewBase32() *Base32Codec {
	return &Base32Codec{BaseCodec{KindValue: KindBase32, DescriptionValue: "Decode RFC 4648 Base32"}}
}

func (c *Base32Codec) Attempt(in Buffer) DecodeAttempt {
	if in.Len() == 0 || !onlyAlphabet(in.data, base32Alphabet) {
		return Inapplicable()
	}
	decoded, err := base32.StdEncoding.DecodeString(string(in.data))
	if err != nil {
		return Inapplicable()
	}
	return c.accept(in, Bytes(decoded))
}

// Base85Codec decodes the RFC 1924 Base85 variant. Short final groups are
// padded with the highest digit and the padding bytes are dropped from the
// output.
type Base85Codec struct {
	BaseCodec
}

func NewBase85() *Base85Codec {
	return &Base85Codec{BaseCodec{KindValue: KindBase85, DescriptionValue: "Decode RFC 1924 Base85"}}
}

func (c *Base85Codec) Attempt(in Buffer) DecodeAttempt {
	decoded, ok := decodeBase85(in.data)
	if !ok {
		return Inapplicable()
	}
	return c.accept(in, Bytes(decoded))
}

func decodeBase85(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	padding := (5 - len(data)%5) % 5
	padded := make([]byte, 0, len(data)+padding)
	padded = append(padded, data...)
	for i := 0; i < padding; i++ {
		padded = append(padded, '~')
	}

	out := make([]byte, 0, len(padded)/5*4)
	var word [4]byte
	for i := 0; i < len(padded); i += 5 {
		var acc uint64
		for _, ch := range padded[i : i+5] {
			digit := base85Table[ch]
			if digit < 0 {
				return nil, false
			}
			acc = acc*85 + uint64(digit)
		}
		if acc > 0xffffffff {
			return nil, false
		}
		binary.BigEndian.PutUint32(word[:], uint32(acc))
		out = append(out, word[:]...)
	}
	return out[:len(out)-padding], true
}

// HexCodec decodes hexadecimal digits once 0x and \x prefixes and all
// whitespace are removed.
type HexCodec struct {
	BaseCodec
}

func NewHex() *HexCodec {
	return &HexCodec{BaseCodec{KindValue: KindHex, DescriptionValue: "Decode hexadecimal digits"}}
}

var hexPrefixes = strings.NewReplacer("0x", "", "0X", "", `\x`, "")

func (c *HexCodec) Attempt(in Buffer) DecodeAttempt {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, hexPrefixes.Replace(strings.TrimSpace(in.View())))
	if cleaned == "" || len(cleaned)%2 != 0 {
		return Inapplicable()
	}
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return Inapplicable()
	}
	return c.accept(in, Bytes(decoded))
}
