package engine

import "github.com/RowanDark/mardec/internal/cipher"

// Observer receives progress callbacks. Callbacks run synchronously on the
// decoding goroutine and must not retain the buffers they are given beyond
// the call.
type Observer interface {
	SessionStarted(in cipher.Buffer)
	PassStarted(iteration int, in cipher.Buffer)
	LayerDecoded(record LayerRecord)
	PassFinished(iteration int, pass Pass)
	SessionFinished(session *Session)
}

// NopObserver ignores every callback. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) SessionStarted(cipher.Buffer)   {}
func (NopObserver) PassStarted(int, cipher.Buffer) {}
func (NopObserver) LayerDecoded(LayerRecord)       {}
func (NopObserver) PassFinished(int, Pass)         {}
func (NopObserver) SessionFinished(*Session)       {}

type multiObserver []Observer

// Observers fans callbacks out to each non-nil observer in order.
func Observers(observers ...Observer) Observer {
	var out multiObserver
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) SessionStarted(in cipher.Buffer) {
	for _, o := range m {
		o.SessionStarted(in)
	}
}

func (m multiObserver) PassStarted(iteration int, in cipher.Buffer) {
	for _, o := range m {
		o.PassStarted(iteration, in)
	}
}

func (m multiObserver) LayerDecoded(record LayerRecord) {
	for _, o := range m {
		o.LayerDecoded(record)
	}
}

func (m multiObserver) PassFinished(iteration int, pass Pass) {
	for _, o := range m {
		o.PassFinished(iteration, pass)
	}
}

func (m multiObserver) SessionFinished(session *Session) {
	for _, o := range m {
		o.SessionFinished(session)
	}
}
