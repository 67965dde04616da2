package logging

import (
	"github.com/rs/zerolog"

	"github.com/RowanDark/mardec/internal/cipher"
	"github.com/RowanDark/mardec/internal/engine"
)

// Progress reports decode progress on the console logger.
type Progress struct {
	engine.NopObserver
	logger *zerolog.Logger
}

// NewProgress returns an observer that logs through logger.
func NewProgress(logger *zerolog.Logger) *Progress {
	return &Progress{logger: logger}
}

func (p *Progress) SessionStarted(in cipher.Buffer) {
	p.logger.Info().Msg("Starting automatic deobfuscation...")
	p.logger.Info().Msgf("Input size: %d bytes", in.Size())
}

func (p *Progress) PassStarted(iteration int, _ cipher.Buffer) {
	if iteration > 1 {
		p.logger.Info().Msgf("=== Iteration %d ===", iteration)
	}
}

func (p *Progress) LayerDecoded(record engine.LayerRecord) {
	Success(p.logger).Msgf("Layer %d: Decoded using %s → %d bytes", record.Index, record.Kind, record.OutputSize)
}

func (p *Progress) PassFinished(_ int, pass engine.Pass) {
	switch pass.Terminal {
	case engine.TerminatedClean:
		Success(p.logger).Msg("Clean Python code detected!")
	case engine.TerminatedStuck:
		p.logger.Info().Msgf("No more decoding methods successful at layer %d", pass.Layers)
	case engine.TerminatedCap:
		p.logger.Warn().Msgf("Layer cap reached after %d layers", pass.Layers)
	}
}

// AuditObserver mirrors decode progress into an audit trail. Emit failures
// do not interrupt decoding; the first one is kept for Err.
type AuditObserver struct {
	audit *AuditLogger
	err   error
}

// NewAuditObserver returns an observer writing to audit.
func NewAuditObserver(audit *AuditLogger) *AuditObserver {
	return &AuditObserver{audit: audit.WithComponent("engine")}
}

// Err returns the first emit failure, if any.
func (o *AuditObserver) Err() error { return o.err }

func (o *AuditObserver) emit(event AuditEvent) {
	if err := o.audit.Emit(event); err != nil && o.err == nil {
		o.err = err
	}
}

func (o *AuditObserver) SessionStarted(in cipher.Buffer) {
	o.emit(AuditEvent{
		EventType: EventSessionStart,
		Size:      in.Size(),
		Metadata:  map[string]any{"text": in.IsText()},
	})
}

func (o *AuditObserver) PassStarted(int, cipher.Buffer) {}

func (o *AuditObserver) LayerDecoded(record engine.LayerRecord) {
	o.emit(AuditEvent{
		EventType: EventLayerDecoded,
		Iteration: record.Iteration,
		Layer:     record.Index,
		Method:    record.Kind.String(),
		Size:      record.OutputSize,
	})
}

func (o *AuditObserver) PassFinished(iteration int, pass engine.Pass) {
	o.emit(AuditEvent{
		EventType: EventPassTerminated,
		Iteration: iteration,
		Layer:     pass.Layers,
		Size:      pass.Output.Size(),
		Reason:    pass.Terminal.String(),
	})
}

func (o *AuditObserver) SessionFinished(session *engine.Session) {
	o.emit(AuditEvent{
		EventType: EventSessionComplete,
		Iteration: session.Iterations,
		Layer:     session.TotalLayers,
		Size:      len(session.FinalText),
		Reason:    session.Terminal.String(),
		Metadata: map[string]any{
			"clean":          session.Clean,
			"decoded_layers": session.DecodedLayers(),
		},
	})
}
