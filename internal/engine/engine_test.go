package engine

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/RowanDark/mardec/internal/cipher"
)

const sample = "import os\nprint(\"hi\")\n\nif __name__ == \"__main__\":\n    pass\n"

// bzip2 of sample, produced by Python's bz2.compress.
const sampleBz2Hex = "425a6839314159265359e5ba588f000013db804010506000120000a363dc002000545034d1a68c9883527ea7a2989ea0cd216752150daf1bf6af0a072987996486549c3ebb1addcb83c5b1259bc35345cf8bb9229c284872dd2c4780"

// base85 of sample, produced by Python's base64.b85encode.
const sampleB85 = "X>D+Ca&#bXa|&>BX>N2VB4}wMDGCZ{W*}c*ZeeX@Utb_SJs=`qUu|J&ZeL#_Itm~lARusIb8`v"

func compressZlib(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func compressGzip(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func b64(data []byte) []byte {
	return []byte(base64.StdEncoding.EncodeToString(data))
}

func escapedHex(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		fmt.Fprintf(&b, `\x%02x`, c)
	}
	return b.String()
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		}
		return r
	}, s)
}

func newEngine(t *testing.T, cfg Config) *LayerEngine {
	t.Helper()
	e, err := NewLayerEngine(cfg)
	if err != nil {
		t.Fatalf("NewLayerEngine: %v", err)
	}
	return e
}

func newDriver(t *testing.T, cfg Config) *SessionDriver {
	t.Helper()
	d, err := NewSessionDriver(cfg)
	if err != nil {
		t.Fatalf("NewSessionDriver: %v", err)
	}
	return d
}

func kinds(records []LayerRecord) []cipher.CodecKind {
	out := make([]cipher.CodecKind, len(records))
	for i, r := range records {
		out[i] = r.Kind
	}
	return out
}

func TestCleanInputIsIdempotent(t *testing.T) {
	e := newEngine(t, Config{})
	in := cipher.Text(sample)

	pass := e.Run(in)
	if pass.Terminal != TerminatedClean {
		t.Fatalf("expected clean, got %s", pass.Terminal)
	}
	if pass.Layers != 1 {
		t.Errorf("expected 1 layer, got %d", pass.Layers)
	}
	if len(pass.Records) != 0 {
		t.Errorf("expected no records, got %d", len(pass.Records))
	}
	if !pass.Output.Equal(in) || pass.Text() != sample {
		t.Errorf("clean input was modified: %q", pass.Text())
	}
}

func TestSingleLayerRoundTrip(t *testing.T) {
	// The base32 case ends in six padding characters so it cannot also
	// pass as Base64.
	padded := sample + "\n\n"
	bz2, err := hex.DecodeString(sampleBz2Hex)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input cipher.Buffer
		want  string
		kind  cipher.CodecKind
	}{
		{"zlib", cipher.Bytes(compressZlib(t, []byte(sample))), sample, cipher.KindZlib},
		{"gzip", cipher.Bytes(compressGzip(t, []byte(sample))), sample, cipher.KindGzip},
		{"bz2", cipher.Bytes(bz2), sample, cipher.KindBz2},
		{"base64", cipher.Bytes(b64([]byte(sample))), sample, cipher.KindBase64},
		{"base32", cipher.Bytes([]byte(base32.StdEncoding.EncodeToString([]byte(padded)))), padded, cipher.KindBase32},
		{"base85", cipher.Bytes([]byte(sampleB85)), sample, cipher.KindBase85},
		{"hex", cipher.Bytes([]byte(escapedHex([]byte(sample)))), sample, cipher.KindHex},
		{"rot13", cipher.Text(rot13(sample)), sample, cipher.KindRot13},
		{"exec wrapper", cipher.Text("exec(b'" + escapedHex([]byte(sample)) + "')"), sample, cipher.KindWrapperExtraction},
	}

	e := newEngine(t, Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass := e.Run(tt.input)
			if pass.Terminal != TerminatedClean {
				t.Fatalf("expected clean, got %s after %v", pass.Terminal, kinds(pass.Records))
			}
			if got := kinds(pass.Records); !reflect.DeepEqual(got, []cipher.CodecKind{tt.kind}) {
				t.Fatalf("expected [%s], got %v", tt.kind, got)
			}
			if pass.Layers != 2 {
				t.Errorf("expected 2 layers, got %d", pass.Layers)
			}
			if pass.Text() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, pass.Text())
			}
			if rec := pass.Records[0]; rec.Index != 1 || rec.Iteration != 1 || rec.OutputSize != len(tt.want) {
				t.Errorf("unexpected record %+v", rec)
			}
		})
	}
}

func TestMarshalPayload(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "marshal_zlib.bin"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	pass := newEngine(t, Config{}).Run(cipher.Bytes(data))
	want := []cipher.CodecKind{cipher.KindMarshalUnwrap, cipher.KindZlib}
	if got := kinds(pass.Records); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if pass.Terminal != TerminatedClean {
		t.Fatalf("expected clean, got %s", pass.Terminal)
	}
	if !strings.HasSuffix(pass.Text(), sample) {
		t.Errorf("unexpected output %q", pass.Text())
	}
}

func TestComposition(t *testing.T) {
	input := cipher.Bytes(b64(compressZlib(t, []byte(sample))))
	want := []cipher.CodecKind{cipher.KindBase64, cipher.KindZlib}

	for _, order := range []cipher.Order{cipher.OrderCompressionFirst, cipher.OrderEncodingFirst} {
		t.Run(order.String(), func(t *testing.T) {
			e := newEngine(t, Config{Decoder: cipher.NewSet(cipher.WithOrder(order))})
			pass := e.Run(input)
			if got := kinds(pass.Records); !reflect.DeepEqual(got, want) {
				t.Fatalf("expected %v, got %v", want, got)
			}
			if pass.Text() != sample {
				t.Errorf("expected %q, got %q", sample, pass.Text())
			}
		})
	}
}

func TestTextTaggedBase64NeedsRot13Disabled(t *testing.T) {
	input := cipher.Text(string(b64(compressZlib(t, []byte(sample)))))

	pass := newEngine(t, Config{}).Run(input)
	if len(pass.Records) == 0 || pass.Records[0].Kind != cipher.KindRot13 {
		t.Fatalf("expected rot13 to claim text first, got %v", kinds(pass.Records))
	}

	e := newEngine(t, Config{Decoder: cipher.NewSet(cipher.WithoutCodecs(cipher.KindRot13))})
	pass = e.Run(input)
	want := []cipher.CodecKind{cipher.KindBase64, cipher.KindZlib}
	if got := kinds(pass.Records); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLayerCap(t *testing.T) {
	// ROT13 maps this text back and forth forever.
	input := cipher.Text("hello world")

	tests := []struct {
		name     string
		cfg      Config
		expected int
	}{
		{"default cap", Config{}, DefaultMaxLayers},
		{"custom cap", Config{Limits: Limits{MaxLayers: 5}}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass := newEngine(t, tt.cfg).Run(input)
			if pass.Terminal != TerminatedCap {
				t.Fatalf("expected cap, got %s", pass.Terminal)
			}
			if pass.Layers != tt.expected || len(pass.Records) != tt.expected {
				t.Errorf("expected %d layers and records, got %d and %d", tt.expected, pass.Layers, len(pass.Records))
			}
			last := pass.Records[len(pass.Records)-1]
			if last.Index != tt.expected {
				t.Errorf("expected last index %d, got %d", tt.expected, last.Index)
			}
		})
	}
}

func TestStuckInput(t *testing.T) {
	in := cipher.Bytes([]byte{0x00, 0x01, 0xff})
	pass := newEngine(t, Config{}).Run(in)
	if pass.Terminal != TerminatedStuck {
		t.Fatalf("expected stuck, got %s", pass.Terminal)
	}
	if pass.Layers != 1 || len(pass.Records) != 0 {
		t.Errorf("expected 1 layer and no records, got %d and %d", pass.Layers, len(pass.Records))
	}
	if !pass.Output.Equal(in) {
		t.Error("stuck output should equal input")
	}
}

func TestBlacklistPreventsEarlyTermination(t *testing.T) {
	in := cipher.Text("import os\ndef main():\n    return 1\nexec(payload)\n")
	pass := newEngine(t, Config{Limits: Limits{MaxLayers: 3}}).Run(in)
	if pass.Terminal == TerminatedClean && pass.Layers == 1 {
		t.Fatal("wrapped source terminated as clean")
	}
	if len(pass.Records) == 0 || pass.Records[0].Kind != cipher.KindWrapperExtraction {
		t.Errorf("expected exec extraction first, got %v", kinds(pass.Records))
	}
}

func TestTieBreak(t *testing.T) {
	pass := newEngine(t, Config{Limits: Limits{MaxLayers: 1}}).Run(cipher.Bytes([]byte("deadbeef")))
	if len(pass.Records) != 1 || pass.Records[0].Kind != cipher.KindBase64 {
		t.Fatalf("expected base64 to win, got %v", kinds(pass.Records))
	}
}

func TestInvalidLimits(t *testing.T) {
	for _, limits := range []Limits{{MaxLayers: -1}, {MaxIterations: -3}} {
		if _, err := NewLayerEngine(Config{Limits: limits}); err == nil {
			t.Errorf("expected error for %+v", limits)
		}
		if _, err := NewSessionDriver(Config{Limits: limits}); err == nil {
			t.Errorf("expected error for %+v", limits)
		}
	}
}

type countingObserver struct {
	NopObserver
	started  int
	passes   []int
	layers   []LayerRecord
	finished *Session
}

func (o *countingObserver) SessionStarted(cipher.Buffer) { o.started++ }

func (o *countingObserver) PassStarted(iteration int, _ cipher.Buffer) {
	o.passes = append(o.passes, iteration)
}

func (o *countingObserver) LayerDecoded(record LayerRecord) {
	o.layers = append(o.layers, record)
}

func (o *countingObserver) SessionFinished(s *Session) { o.finished = s }

func TestObserverReceivesProgress(t *testing.T) {
	first, second := &countingObserver{}, &countingObserver{}
	d := newDriver(t, Config{Observer: Observers(first, nil, second)})
	session := d.Run(cipher.Bytes(b64(compressZlib(t, []byte(sample)))))

	for _, o := range []*countingObserver{first, second} {
		if o.started != 1 {
			t.Errorf("expected one session start, got %d", o.started)
		}
		if !reflect.DeepEqual(o.passes, []int{1}) {
			t.Errorf("expected passes [1], got %v", o.passes)
		}
		if !reflect.DeepEqual(o.layers, session.Records) {
			t.Errorf("observer layers %v differ from session records %v", o.layers, session.Records)
		}
		if o.finished != session {
			t.Error("observer did not receive the finished session")
		}
	}
}

// scriptedDecoder replays attempts in order, then reports nothing applicable.
type scriptedDecoder struct {
	attempts []cipher.DecodeAttempt
}

func (d *scriptedDecoder) Decode(cipher.Buffer) cipher.DecodeAttempt {
	if len(d.attempts) == 0 {
		return cipher.Inapplicable()
	}
	next := d.attempts[0]
	d.attempts = d.attempts[1:]
	return next
}

type neverClean struct{}

func (neverClean) IsClean(cipher.Buffer) bool { return false }

func TestPassStopsOnFirstFailedAttempt(t *testing.T) {
	decoder := &scriptedDecoder{attempts: []cipher.DecodeAttempt{
		{OK: true, Payload: cipher.Bytes([]byte("one")), Kind: cipher.KindGzip},
		{OK: true, Payload: cipher.Text("two"), Kind: cipher.KindBase64},
		{Payload: cipher.Text("ignored"), Kind: cipher.KindZlib},
		{OK: true, Payload: cipher.Text("unreached"), Kind: cipher.KindHex},
	}}
	pass := newEngine(t, Config{Decoder: decoder, Classifier: neverClean{}}).Run(cipher.Bytes([]byte("start")))
	if pass.Terminal != TerminatedStuck {
		t.Fatalf("expected stuck, got %s", pass.Terminal)
	}
	want := []cipher.CodecKind{cipher.KindGzip, cipher.KindBase64}
	if !reflect.DeepEqual(kinds(pass.Records), want) {
		t.Fatalf("expected %v, got %v", want, kinds(pass.Records))
	}
	if pass.Layers != 3 {
		t.Errorf("expected 3 layers, got %d", pass.Layers)
	}
	if !pass.Output.Equal(cipher.Text("two")) {
		t.Errorf("expected output of the last successful layer, got %q", pass.Output.Text())
	}
}
