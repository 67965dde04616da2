package reporter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var bannerTime = time.Date(2026, 3, 7, 9, 5, 1, 0, time.UTC)

func TestComposeGolden(t *testing.T) {
	got, err := Compose("import os\nprint(os.getcwd())\n", ComposeOptions{Header: true, Layers: 3, At: bannerTime})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	wantBytes, err := os.ReadFile(filepath.Join("testdata", "header.golden"))
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	if want := string(wantBytes); got != want {
		t.Fatalf("output mismatch\nwant:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestComposeVariants(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		opts   ComposeOptions
		check  func(string) bool
		expect string
	}{
		{
			name:   "empty result",
			opts:   ComposeOptions{Header: true, Layers: 1, At: bannerTime},
			check:  func(s string) bool { return strings.HasSuffix(s, "\n\n"+EmptyResult) },
			expect: "ends with the empty result marker",
		},
		{
			name:   "no header",
			text:   "x = 1\n",
			opts:   ComposeOptions{Layers: 5, At: bannerTime},
			check:  func(s string) bool { return s == "x = 1\n" },
			expect: "text unchanged",
		},
		{
			name:   "no header empty",
			opts:   ComposeOptions{},
			check:  func(s string) bool { return s == "" },
			expect: "empty output",
		},
		{
			name:   "layer count",
			text:   "pass\n",
			opts:   ComposeOptions{Header: true, Layers: 42, At: bannerTime},
			check:  func(s string) bool { return strings.Contains(s, "# Original obfuscation layers: 42\n") },
			expect: "banner with the layer count",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compose(tt.text, tt.opts)
			if err != nil {
				t.Fatalf("compose: %v", err)
			}
			if !tt.check(got) {
				t.Fatalf("expected %s, got %q", tt.expect, got)
			}
		})
	}
}

func TestBannerDateLayout(t *testing.T) {
	at := time.Date(2025, 12, 31, 23, 59, 58, 0, time.UTC)
	banner, err := Banner(0, at)
	if err != nil {
		t.Fatalf("banner: %v", err)
	}
	if !strings.Contains(banner, "# Deobfuscation date: 31:12:2025 - 23:59:58\n") {
		t.Fatalf("unexpected date line in %q", banner)
	}
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.py")
	if err := WriteOutput(path, "print(1)\n"); err != nil {
		t.Fatalf("write output: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "print(1)\n" {
		t.Fatalf("unexpected content %q", data)
	}
}
