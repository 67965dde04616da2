package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RowanDark/mardec/internal/engine"
)

// SummaryVersion identifies the layout of Summary documents.
const SummaryVersion = "1"

// Summary is the machine-readable account of one decode run.
type Summary struct {
	Version       string               `json:"version"`
	RunID         string               `json:"run_id,omitempty"`
	GeneratedAt   time.Time            `json:"generated_at"`
	Input         string               `json:"input"`
	Output        string               `json:"output"`
	OutputSize    int                  `json:"output_size"`
	Iterations    int                  `json:"iterations"`
	TotalLayers   int                  `json:"total_layers"`
	DecodedLayers int                  `json:"decoded_layers"`
	Terminal      engine.Terminal      `json:"terminal"`
	Clean         bool                 `json:"clean"`
	Records       []engine.LayerRecord `json:"records"`
}

// SummaryOptions carries run details the session does not know about.
type SummaryOptions struct {
	RunID       string
	Input       string
	Output      string
	OutputSize  int
	GeneratedAt time.Time
}

// BuildSummary combines a finished session with its run details.
func BuildSummary(session *engine.Session, opts SummaryOptions) Summary {
	generated := opts.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	records := session.Records
	if records == nil {
		records = []engine.LayerRecord{}
	}
	return Summary{
		Version:       SummaryVersion,
		RunID:         opts.RunID,
		GeneratedAt:   generated.UTC(),
		Input:         opts.Input,
		Output:        opts.Output,
		OutputSize:    opts.OutputSize,
		Iterations:    session.Iterations,
		TotalLayers:   session.TotalLayers,
		DecodedLayers: session.DecodedLayers(),
		Terminal:      session.Terminal,
		Clean:         session.Clean,
		Records:       records,
	}
}

// RenderSummary encodes s as indented JSON.
func RenderSummary(s Summary) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')
	return data, nil
}

// WriteSummary renders s to path.
func WriteSummary(path string, s Summary) error {
	data, err := RenderSummary(s)
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
