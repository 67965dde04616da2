package cipher

import (
	"fmt"
	"strings"
)

// obfuscationMarkers denote decode or execute glue. Matched case-insensitively.
var obfuscationMarkers = []string{
	"exec(",
	"eval(",
	"marshal.loads",
	"base64.b64decode",
	"base64.b32decode",
	"base64.b85decode",
	"zlib.decompress",
	"gzip.decompress",
	"bz2.decompress",
	"compile(",
	"bytes.fromhex",
	"binascii.",
}

// sourceMarkers are tokens of ordinary Python source. Matched case-sensitively.
var sourceMarkers = []string{
	"import ",
	"from ",
	"def ",
	"class ",
	"if ",
	"for ",
	"while ",
	"try:",
	"except:",
	"print(",
	"return ",
	"__name__",
	"__main__",
}

// DefaultMarkerThreshold is the number of distinct source markers a buffer
// needs to be considered clean.
const DefaultMarkerThreshold = 3

// Verdict explains a classification.
type Verdict struct {
	Clean bool
	// BlockedBy is the first obfuscation marker found, if any.
	BlockedBy string
	// Markers lists the distinct source markers present, in table order.
	Markers []string
	Reason  string
}

// SourceDetector decides whether a buffer already reads as clean source
// text. It holds no state beyond its threshold and is safe for concurrent
// use.
type SourceDetector struct {
	threshold int
}

// NewSourceDetector creates a detector with the default threshold.
func NewSourceDetector() *SourceDetector {
	return &SourceDetector{threshold: DefaultMarkerThreshold}
}

// IsClean reports whether in looks like finished source.
func (d *SourceDetector) IsClean(in Buffer) bool {
	return d.Inspect(in).Clean
}

// Inspect classifies in and reports the evidence. Raw buffers are viewed as
// UTF-8 with undecodable bytes dropped; the buffer itself is untouched.
func (d *SourceDetector) Inspect(in Buffer) Verdict {
	text := in.View()

	lowered := strings.ToLower(text)
	for _, marker := range obfuscationMarkers {
		if strings.Contains(lowered, marker) {
			return Verdict{
				BlockedBy: marker,
				Reason:    fmt.Sprintf("contains %q", marker),
			}
		}
	}

	var found []string
	for _, marker := range sourceMarkers {
		if strings.Contains(text, marker) {
			found = append(found, marker)
		}
	}
	verdict := Verdict{
		Clean:   len(found) >= d.threshold,
		Markers: found,
	}
	verdict.Reason = fmt.Sprintf("%d of %d source markers present", len(found), d.threshold)
	return verdict
}
