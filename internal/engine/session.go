package engine

import "github.com/RowanDark/mardec/internal/cipher"

// Session is the outcome of decoding one input.
type Session struct {
	// Records is the ordered audit trail of every decoded layer.
	Records []LayerRecord `json:"records"`
	// Iterations is the number of passes run, at least 1.
	Iterations int `json:"iterations"`
	// TotalLayers sums the layer count of every pass.
	TotalLayers int      `json:"total_layers"`
	Terminal    Terminal `json:"terminal"`
	Clean       bool     `json:"clean"`
	FinalText   string   `json:"-"`
}

// DecodedLayers is the number of successful decodes across all passes.
func (s *Session) DecodedLayers() int { return len(s.Records) }

// Methods lists the codec kinds applied, in order.
func (s *Session) Methods() []cipher.CodecKind {
	kinds := make([]cipher.CodecKind, len(s.Records))
	for i, record := range s.Records {
		kinds[i] = record.Kind
	}
	return kinds
}

// SessionDriver repeats LayerEngine passes until a pass makes no progress or
// yields clean output.
type SessionDriver struct {
	engine        *LayerEngine
	classifier    Classifier
	maxIterations int
	observer      Observer
}

// NewSessionDriver builds a driver and its engine from cfg.
func NewSessionDriver(cfg Config) (*SessionDriver, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	engine, err := NewLayerEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &SessionDriver{
		engine:        engine,
		classifier:    cfg.Classifier,
		maxIterations: cfg.Limits.MaxIterations,
		observer:      cfg.Observer,
	}, nil
}

// Run decodes in to completion. The returned session is owned by the caller.
func (d *SessionDriver) Run(in cipher.Buffer) *Session {
	d.observer.SessionStarted(in)

	session := &Session{}
	current := in
	for iteration := 1; iteration <= d.maxIterations; iteration++ {
		pass := d.engine.run(iteration, current)
		session.Iterations = iteration
		session.TotalLayers += pass.Layers
		session.Records = append(session.Records, pass.Records...)
		session.Terminal = pass.Terminal

		text := pass.Text()
		session.FinalText = text
		current = cipher.Text(text)
		session.Clean = d.classifier.IsClean(current)
		if pass.Layers <= 1 || session.Clean {
			break
		}
	}

	d.observer.SessionFinished(session)
	return session
}
