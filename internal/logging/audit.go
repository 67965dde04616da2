package logging

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names one entry of the decode audit trail.
type EventType string

const (
	EventSessionStart    EventType = "session_start"
	EventLayerDecoded    EventType = "layer_decoded"
	EventPassTerminated  EventType = "pass_terminated"
	EventSessionComplete EventType = "session_complete"
)

// AuditEvent is written as one JSON line.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Component string         `json:"component"`
	EventType EventType      `json:"event_type"`
	Iteration int            `json:"iteration,omitempty"`
	Layer     int            `json:"layer,omitempty"`
	Method    string         `json:"method,omitempty"`
	Size      int            `json:"size,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

type Option func(*config) error

type config struct {
	writers []io.Writer
	closers []io.Closer
	runID   string
	now     func() time.Time
}

func WithWriter(w io.Writer) Option {
	return func(cfg *config) error {
		if w == nil {
			return errors.New("writer cannot be nil")
		}
		cfg.writers = append(cfg.writers, w)
		return nil
	}
}

// WithFile appends events to path, creating it when missing.
func WithFile(path string) Option {
	return func(cfg *config) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("file path cannot be empty")
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		cfg.writers = append(cfg.writers, f)
		cfg.closers = append(cfg.closers, f)
		return nil
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(cfg *config) error {
		if strings.TrimSpace(id) == "" {
			return errors.New("run id cannot be empty")
		}
		cfg.runID = id
		return nil
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.now = now
		return nil
	}
}

type auditCore struct {
	mu      sync.Mutex
	encoder *json.Encoder
	closers []io.Closer
}

// AuditLogger writes the JSONL decode trail. Loggers derived with
// WithComponent share the underlying writers and run id.
type AuditLogger struct {
	component   string
	runID       string
	now         func() time.Time
	core        *auditCore
	ownsClosers bool
}

func NewAuditLogger(component string, opts ...Option) (*AuditLogger, error) {
	cfg := &config{now: time.Now}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			for _, closer := range cfg.closers {
				_ = closer.Close()
			}
			return nil, err
		}
	}
	if len(cfg.writers) == 0 {
		return nil, errors.New("no writers configured for audit logger")
	}
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}
	enc := json.NewEncoder(io.MultiWriter(cfg.writers...))
	enc.SetEscapeHTML(false)
	return &AuditLogger{
		component:   component,
		runID:       cfg.runID,
		now:         cfg.now,
		core:        &auditCore{encoder: enc, closers: cfg.closers},
		ownsClosers: true,
	}, nil
}

// RunID identifies every event written by this logger.
func (l *AuditLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

func (l *AuditLogger) Close() error {
	if l == nil || !l.ownsClosers || l.core == nil {
		return nil
	}
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	var firstErr error
	for _, closer := range l.core.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.core.closers = nil
	return firstErr
}

func (l *AuditLogger) Emit(event AuditEvent) error {
	if l == nil {
		return errors.New("nil audit logger")
	}
	if l.core == nil {
		return errors.New("nil audit logger core")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	} else {
		event.Timestamp = event.Timestamp.UTC()
	}
	if event.Component == "" {
		event.Component = l.component
	}
	event.RunID = l.runID
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	return l.core.encoder.Encode(event)
}

func (l *AuditLogger) WithComponent(component string) *AuditLogger {
	if l == nil || l.core == nil {
		return nil
	}
	return &AuditLogger{
		component:   component,
		runID:       l.runID,
		now:         l.now,
		core:        l.core,
		ownsClosers: false,
	}
}
