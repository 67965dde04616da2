package cipher

import "testing"

func TestSourceDetector(t *testing.T) {
	detector := NewSourceDetector()

	tests := []struct {
		name      string
		input     Buffer
		clean     bool
		blockedBy string
	}{
		{
			name:  "module with guard",
			input: Text("import os\nprint(\"hi\")\n\nif __name__ == \"__main__\":\n    pass\n"),
			clean: true,
		},
		{
			name:  "two markers only",
			input: Text("import os\nprint(1)\n"),
			clean: false,
		},
		{
			name:  "repeated marker counts once",
			input: Text("import a\nimport b\nimport c\nimport d\n"),
			clean: false,
		},
		{
			name:      "exec wrapper blocks otherwise clean text",
			input:     Text("import os\ndef main():\n    return 1\nexec(payload)\n"),
			clean:     false,
			blockedBy: "exec(",
		},
		{
			name:      "blacklist is case insensitive",
			input:     Text("import os\ndef f():\n    return ZLIB.DECOMPRESS(x)\n"),
			clean:     false,
			blockedBy: "zlib.decompress",
		},
		{
			name:  "whitelist is case sensitive",
			input: Text("IMPORT os\nDEF f():\nRETURN 1\n"),
			clean: false,
		},
		{
			name:  "raw bytes viewed as utf-8",
			input: Bytes(append([]byte{0xff, 0xfe}, []byte("from x import y\nclass A:\n    def f(self):\n        pass\n")...)),
			clean: true,
		},
		{
			name:  "empty",
			input: Text(""),
			clean: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := detector.Inspect(tt.input)
			if verdict.Clean != tt.clean {
				t.Fatalf("expected clean=%v, got %v (%s)", tt.clean, verdict.Clean, verdict.Reason)
			}
			if verdict.BlockedBy != tt.blockedBy {
				t.Errorf("expected blockedBy %q, got %q", tt.blockedBy, verdict.BlockedBy)
			}
			if detector.IsClean(tt.input) != verdict.Clean {
				t.Errorf("IsClean disagrees with Inspect")
			}
		})
	}
}

func TestSourceDetectorDoesNotMutate(t *testing.T) {
	detector := NewSourceDetector()
	raw := []byte{0xff, 'i', 'f', ' ', 0x80}
	buf := Bytes(raw)
	detector.IsClean(buf)
	if !buf.Equal(Bytes(raw)) || buf.IsText() {
		t.Fatal("classification changed the buffer")
	}
}

func TestSourceDetectorMarkers(t *testing.T) {
	verdict := NewSourceDetector().Inspect(Text("for x in y:\n    while True:\n        try:\n            pass\n        except:\n            pass\n"))
	want := []string{"for ", "while ", "try:", "except:"}
	if len(verdict.Markers) != len(want) {
		t.Fatalf("expected markers %q, got %q", want, verdict.Markers)
	}
	for i := range want {
		if verdict.Markers[i] != want[i] {
			t.Errorf("marker %d: expected %q, got %q", i, want[i], verdict.Markers[i])
		}
	}
}
