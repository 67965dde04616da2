package cipher

import (
	"errors"
	"fmt"
	"strings"
)

var errNotBytesLiteral = errors.New("not a bytes literal")

// ParseBytesLiteral evaluates a single Python bytes literal such as
// b'\x78\x9c' or rb"raw". Surrounding whitespace is ignored; anything else
// around the literal is an error.
func ParseBytesLiteral(src string) ([]byte, error) {
	s := strings.TrimSpace(src)
	raw := false
	switch {
	case len(s) >= 2 && strings.EqualFold(s[:2], "br"), len(s) >= 2 && strings.EqualFold(s[:2], "rb"):
		raw = true
		s = s[2:]
	case len(s) >= 1 && (s[0] == 'b' || s[0] == 'B'):
		s = s[1:]
	default:
		return nil, errNotBytesLiteral
	}
	if s == "" || (s[0] != '\'' && s[0] != '"') {
		return nil, errNotBytesLiteral
	}

	quote := s[:1]
	if strings.HasPrefix(s, strings.Repeat(quote, 3)) {
		quote = strings.Repeat(quote, 3)
	}
	if len(s) < 2*len(quote) || !strings.HasSuffix(s, quote) {
		return nil, fmt.Errorf("unterminated bytes literal")
	}
	body := s[len(quote) : len(s)-len(quote)]
	triple := len(quote) == 3

	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= 0x80 {
			return nil, fmt.Errorf("bytes literal contains non-ASCII byte at %d", i)
		}
		if c == '\n' && !triple {
			return nil, fmt.Errorf("newline in single-quoted bytes literal")
		}
		if strings.HasPrefix(body[i:], quote) {
			return nil, fmt.Errorf("unescaped quote at %d", i)
		}
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 >= len(body) {
			return nil, fmt.Errorf("trailing backslash")
		}
		next := body[i+1]
		if raw {
			// Raw literals keep the backslash; it only protects the quote.
			out = append(out, c, next)
			i++
			continue
		}
		i++
		switch next {
		case '\n':
		case '\\', '\'', '"':
			out = append(out, next)
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'v':
			out = append(out, '\v')
		case 'x':
			if i+2 >= len(body) || !isHexDigit(body[i+1]) || !isHexDigit(body[i+2]) {
				return nil, fmt.Errorf("truncated \\x escape at %d", i-1)
			}
			out = append(out, hexValue(body[i+1])<<4|hexValue(body[i+2]))
			i += 2
		default:
			if isOctalDigit(next) {
				value := int(next - '0')
				for n := 0; n < 2 && i+1 < len(body) && isOctalDigit(body[i+1]); n++ {
					i++
					value = value*8 + int(body[i]-'0')
				}
				out = append(out, byte(value&0xff))
				continue
			}
			out = append(out, '\\', next)
		}
	}
	return out, nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isOctalDigit(c byte) bool { return c >= '0' && c <= '7' }

func hexValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
