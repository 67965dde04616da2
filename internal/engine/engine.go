// Package engine drives the layered decode: a LayerEngine peels layers off a
// buffer in one bounded pass, and a SessionDriver repeats passes until the
// result settles.
package engine

import (
	"fmt"

	"github.com/RowanDark/mardec/internal/cipher"
)

const (
	DefaultMaxLayers     = 100
	DefaultMaxIterations = 10
)

// Limits bounds the work done for one input.
type Limits struct {
	// MaxLayers caps the layers decoded by a single pass.
	MaxLayers int
	// MaxIterations caps the passes run by a session.
	MaxIterations int
}

// DefaultLimits returns the standard caps.
func DefaultLimits() Limits {
	return Limits{MaxLayers: DefaultMaxLayers, MaxIterations: DefaultMaxIterations}
}

// Validate rejects non-positive caps.
func (l Limits) Validate() error {
	if l.MaxLayers < 1 {
		return fmt.Errorf("max layers must be at least 1, got %d", l.MaxLayers)
	}
	if l.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", l.MaxIterations)
	}
	return nil
}

// Decoder applies one layer of decoding. *cipher.Set implements it. An
// attempt without OK set ends the pass as stuck.
type Decoder interface {
	Decode(in cipher.Buffer) cipher.DecodeAttempt
}

// Classifier decides whether a buffer is finished. *cipher.SourceDetector
// implements it.
type Classifier interface {
	IsClean(in cipher.Buffer) bool
}

// Config wires an engine. Zero fields fall back to the default codec set,
// the default detector, the default caps and no observer.
type Config struct {
	Decoder    Decoder
	Classifier Classifier
	Limits     Limits
	Observer   Observer
}

func (c Config) withDefaults() (Config, error) {
	if c.Decoder == nil {
		c.Decoder = cipher.NewSet()
	}
	if c.Classifier == nil {
		c.Classifier = cipher.NewSourceDetector()
	}
	if c.Limits.MaxLayers == 0 {
		c.Limits.MaxLayers = DefaultMaxLayers
	}
	if c.Limits.MaxIterations == 0 {
		c.Limits.MaxIterations = DefaultMaxIterations
	}
	if err := c.Limits.Validate(); err != nil {
		return c, fmt.Errorf("invalid limits: %w", err)
	}
	if c.Observer == nil {
		c.Observer = NopObserver{}
	}
	return c, nil
}

// Terminal is the state a pass ended in.
type Terminal int

const (
	// TerminatedClean means the classifier accepted the buffer.
	TerminatedClean Terminal = iota + 1
	// TerminatedStuck means no codec applied.
	TerminatedStuck
	// TerminatedCap means the layer cap was reached.
	TerminatedCap
)

func (t Terminal) String() string {
	switch t {
	case TerminatedClean:
		return "clean"
	case TerminatedStuck:
		return "stuck"
	case TerminatedCap:
		return "cap"
	default:
		return "unknown"
	}
}

func (t Terminal) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Terminal) UnmarshalText(data []byte) error {
	for _, candidate := range []Terminal{TerminatedClean, TerminatedStuck, TerminatedCap} {
		if candidate.String() == string(data) {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown terminal state %q", data)
}

// LayerRecord describes one successful decode.
type LayerRecord struct {
	Iteration  int              `json:"iteration"`
	Index      int              `json:"index"`
	Kind       cipher.CodecKind `json:"kind"`
	OutputSize int              `json:"output_size"`
}

// Pass is the result of one LayerEngine run.
type Pass struct {
	Output cipher.Buffer
	// Layers counts every layer entered, including the final classify-only
	// layer of a clean or stuck pass.
	Layers   int
	Records  []LayerRecord
	Terminal Terminal
}

// Text returns the pass output coerced to a string.
func (p Pass) Text() string { return p.Output.Text() }

// LayerEngine runs single bounded passes. It is stateless between runs and
// safe for concurrent use when its collaborators are.
type LayerEngine struct {
	decoder    Decoder
	classifier Classifier
	maxLayers  int
	observer   Observer
}

// NewLayerEngine builds an engine from cfg.
func NewLayerEngine(cfg Config) (*LayerEngine, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &LayerEngine{
		decoder:    cfg.Decoder,
		classifier: cfg.Classifier,
		maxLayers:  cfg.Limits.MaxLayers,
		observer:   cfg.Observer,
	}, nil
}

// Run performs one pass over in.
func (e *LayerEngine) Run(in cipher.Buffer) Pass {
	return e.run(1, in)
}

func (e *LayerEngine) run(iteration int, in cipher.Buffer) Pass {
	e.observer.PassStarted(iteration, in)

	current := in
	var records []LayerRecord
	finish := func(layers int, terminal Terminal) Pass {
		pass := Pass{Output: current, Layers: layers, Records: records, Terminal: terminal}
		e.observer.PassFinished(iteration, pass)
		return pass
	}

	for layer := 1; ; layer++ {
		if e.classifier.IsClean(current) {
			return finish(layer, TerminatedClean)
		}

		attempt := e.decoder.Decode(current)
		if !attempt.OK {
			return finish(layer, TerminatedStuck)
		}

		current = attempt.Payload
		record := LayerRecord{
			Iteration:  iteration,
			Index:      layer,
			Kind:       attempt.Kind,
			OutputSize: current.Size(),
		}
		records = append(records, record)
		e.observer.LayerDecoded(record)

		if layer >= e.maxLayers {
			return finish(layer, TerminatedCap)
		}
	}
}
