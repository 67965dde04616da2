package cipher

import (
	"regexp"
	"strings"
)

// wrapperPatterns are tried in order; the first that matches decides the
// extracted argument.
var wrapperPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)exec\s*\(\s*marshal\.loads\s*\(\s*(b['"].*?['"])\s*\)`),
	regexp.MustCompile(`(?s)exec\s*\(\s*base64\.b64decode\s*\(\s*(b['"].*?['"])\s*\)`),
	regexp.MustCompile(`(?s)exec\s*\(\s*zlib\.decompress\s*\(\s*(b['"].*?['"])\s*\)`),
	regexp.MustCompile(`(?s)exec\s*\(\s*(.+?)\s*\)`),
	regexp.MustCompile(`(?s)eval\s*\(\s*(.+?)\s*\)`),
}

// WrapperExtraction pulls the argument out of an exec/eval wrapper call.
// Byte-string literal arguments are evaluated to their byte value; anything
// else is passed on as text.
type WrapperExtraction struct {
	BaseCodec
}

func NewWrapperExtraction() *WrapperExtraction {
	return &WrapperExtraction{BaseCodec{KindValue: KindWrapperExtraction, DescriptionValue: "Extract the argument of an exec or eval wrapper"}}
}

func (c *WrapperExtraction) Attempt(in Buffer) DecodeAttempt {
	if !in.IsText() {
		return Inapplicable()
	}
	source := in.View()
	for _, pattern := range wrapperPatterns {
		match := pattern.FindStringSubmatch(source)
		if match == nil {
			continue
		}
		return c.accept(in, extractArgument(match[1]))
	}
	return Inapplicable()
}

func extractArgument(arg string) Buffer {
	if strings.HasPrefix(arg, "b") || strings.HasPrefix(arg, "B") {
		if value, err := ParseBytesLiteral(arg); err == nil {
			return Bytes(value)
		}
	}
	return Text(arg)
}

// Rot13Codec rotates ASCII letters by 13 places.
type Rot13Codec struct {
	BaseCodec
}

func NewRot13() *Rot13Codec {
	return &Rot13Codec{BaseCodec{KindValue: KindRot13, DescriptionValue: "Apply the ROT13 letter rotation"}}
}

func (c *Rot13Codec) Attempt(in Buffer) DecodeAttempt {
	if !in.IsText() {
		return Inapplicable()
	}
	return c.accept(in, Text(rot13(in.View())))
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		default:
			return r
		}
	}, s)
}
