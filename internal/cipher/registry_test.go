package cipher

import (
	"encoding/base64"
	"reflect"
	"testing"
)

func TestNewSetOrder(t *testing.T) {
	tests := []struct {
		name string
		opts []SetOption
		want []CodecKind
	}{
		{
			name: "default",
			want: []CodecKind{
				KindWrapperExtraction, KindRot13, KindMarshalUnwrap,
				KindZlib, KindGzip, KindBz2,
				KindBase64, KindBase32, KindBase85,
				KindHex,
			},
		},
		{
			name: "encoding first",
			opts: []SetOption{WithOrder(OrderEncodingFirst)},
			want: []CodecKind{
				KindWrapperExtraction, KindRot13, KindMarshalUnwrap,
				KindBase64, KindBase32, KindBase85,
				KindZlib, KindGzip, KindBz2,
				KindHex,
			},
		},
		{
			name: "extended",
			opts: []SetOption{WithExtended(true)},
			want: []CodecKind{
				KindWrapperExtraction, KindRot13, KindMarshalUnwrap,
				KindZlib, KindGzip, KindBz2,
				KindBase64, KindBase32, KindBase85,
				KindHex, KindZstd, KindLZ4,
			},
		},
		{
			name: "disabled",
			opts: []SetOption{WithoutCodecs(KindRot13, KindMarshalUnwrap)},
			want: []CodecKind{
				KindWrapperExtraction,
				KindZlib, KindGzip, KindBz2,
				KindBase64, KindBase32, KindBase85,
				KindHex,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewSet(tt.opts...).Kinds()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseOrder(t *testing.T) {
	for input, want := range map[string]Order{
		"":                  OrderCompressionFirst,
		"compression-first": OrderCompressionFirst,
		"Encoding-First":    OrderEncodingFirst,
	} {
		got, err := ParseOrder(input)
		if err != nil || got != want {
			t.Errorf("ParseOrder(%q) = %s, %v", input, got, err)
		}
	}
	if _, err := ParseOrder("random"); err == nil {
		t.Error("expected error for unknown order")
	}
}

func TestSetRegister(t *testing.T) {
	set := NewSet()

	if err := set.Register(nil); err == nil {
		t.Error("expected error registering nil codec")
	}
	if err := set.Register(NewHex()); err == nil {
		t.Error("expected error registering duplicate kind")
	}
	none := &stubCodec{BaseCodec: BaseCodec{KindValue: KindNone}}
	if err := set.Register(none); err == nil {
		t.Error("expected error registering reserved kind")
	}
	if err := set.Register(NewZstd()); err != nil {
		t.Fatalf("register zstd: %v", err)
	}
	if _, ok := set.Lookup(KindZstd); !ok {
		t.Error("zstd should be registered")
	}
	if kinds := set.Kinds(); kinds[len(kinds)-1] != KindZstd {
		t.Errorf("registered codec should have lowest priority, got %v", kinds)
	}
}

func TestSetTieBreak(t *testing.T) {
	// Valid as both Base64 and hex; Base64 ranks higher.
	attempt := NewSet().Decode(Bytes([]byte("deadbeef")))
	if !attempt.OK {
		t.Fatal("expected a codec to apply")
	}
	if attempt.Kind != KindBase64 {
		t.Fatalf("expected base64, got %s", attempt.Kind)
	}
	want, _ := base64.StdEncoding.DecodeString("deadbeef")
	if !attempt.Payload.Equal(Bytes(want)) {
		t.Errorf("unexpected payload %x", attempt.Payload.Data())
	}

	// "deadbeef" is also valid Base85.
	hexOnly := NewSet(WithoutCodecs(KindBase64, KindBase85))
	if attempt := hexOnly.Decode(Bytes([]byte("deadbeef"))); attempt.Kind != KindHex {
		t.Errorf("expected hex once base64 and base85 are disabled, got %s", attempt.Kind)
	}
}

func TestSetDecodeNone(t *testing.T) {
	attempt := NewSet().Decode(Bytes([]byte{0x00, 0x01, 0xff}))
	if attempt.OK || attempt.Kind != KindNone {
		t.Fatalf("expected no codec to apply, got %s", attempt.Kind)
	}
}

type stubCodec struct {
	BaseCodec
	attempt func(Buffer) DecodeAttempt
}

func (s *stubCodec) Attempt(in Buffer) DecodeAttempt { return s.attempt(in) }

func TestSetShieldsMisbehavingCodecs(t *testing.T) {
	input := Bytes([]byte{0x00, 0x01, 0xff})

	tests := []struct {
		name    string
		attempt func(Buffer) DecodeAttempt
	}{
		{"panics", func(Buffer) DecodeAttempt { panic("boom") }},
		{"echoes input", func(in Buffer) DecodeAttempt {
			return DecodeAttempt{OK: true, Payload: in, Kind: KindZstd}
		}},
		{"empty payload", func(Buffer) DecodeAttempt {
			return DecodeAttempt{OK: true, Payload: Bytes(nil), Kind: KindZstd}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewSet()
			if err := set.Register(&stubCodec{BaseCodec: BaseCodec{KindValue: KindZstd}, attempt: tt.attempt}); err != nil {
				t.Fatalf("register: %v", err)
			}
			if attempt := set.Decode(input); attempt.OK {
				t.Fatalf("expected misbehaving codec to be ignored, got %s", attempt.Kind)
			}
		})
	}
}

func TestBufferText(t *testing.T) {
	if got := Bytes([]byte("plain")).Text(); got != "plain" {
		t.Errorf("expected utf-8 passthrough, got %q", got)
	}
	if got := Bytes([]byte{'c', 0xe9}).Text(); got != "cé" {
		t.Errorf("expected latin-1 fallback, got %q", got)
	}
	if got := Text("héllo").Size(); got != 5 {
		t.Errorf("expected text size in characters, got %d", got)
	}
	if got := Bytes([]byte("héllo")).Size(); got != 6 {
		t.Errorf("expected byte size, got %d", got)
	}

	raw := []byte("abc")
	buf := Bytes(raw)
	raw[0] = 'x'
	if buf.View() != "abc" {
		t.Error("buffer shares memory with its source")
	}
	data := buf.Data()
	data[0] = 'y'
	if buf.View() != "abc" {
		t.Error("buffer shares memory with Data result")
	}
}
