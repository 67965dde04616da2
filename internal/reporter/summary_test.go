package reporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RowanDark/mardec/internal/cipher"
	"github.com/RowanDark/mardec/internal/engine"
)

func TestBuildSummary(t *testing.T) {
	session := &engine.Session{
		Records: []engine.LayerRecord{
			{Iteration: 1, Index: 1, Kind: cipher.KindBase64, OutputSize: 120},
			{Iteration: 1, Index: 2, Kind: cipher.KindZlib, OutputSize: 300},
		},
		Iterations:  1,
		TotalLayers: 3,
		Terminal:    engine.TerminatedClean,
		Clean:       true,
		FinalText:   "import os\n",
	}
	generated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", -7200))

	summary := BuildSummary(session, SummaryOptions{
		RunID:       "run-1",
		Input:       "obf.py",
		Output:      "out.py",
		OutputSize:  310,
		GeneratedAt: generated,
	})
	if summary.DecodedLayers != 2 || summary.TotalLayers != 3 {
		t.Fatalf("unexpected layer counts %+v", summary)
	}
	if summary.GeneratedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", summary.GeneratedAt)
	}

	data, err := RenderSummary(summary)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["terminal"] != "clean" {
		t.Errorf("expected terminal by name, got %v", doc["terminal"])
	}
	records, ok := doc["records"].([]any)
	if !ok || len(records) != 2 {
		t.Fatalf("expected 2 records, got %v", doc["records"])
	}
	if first := records[0].(map[string]any); first["kind"] != "base64" {
		t.Errorf("expected kind by name, got %v", first["kind"])
	}
	if _, ok := doc["FinalText"]; ok {
		t.Error("final text must not be serialized")
	}
}

func TestSummaryWithoutRecords(t *testing.T) {
	session := &engine.Session{Iterations: 1, TotalLayers: 1, Terminal: engine.TerminatedStuck}
	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteSummary(path, BuildSummary(session, SummaryOptions{})); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var decoded Summary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Records == nil || len(decoded.Records) != 0 {
		t.Fatalf("expected empty record list, got %v", decoded.Records)
	}
	if decoded.Terminal != engine.TerminatedStuck {
		t.Fatalf("expected stuck terminal, got %s", decoded.Terminal)
	}
}
