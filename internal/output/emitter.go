package output

import (
	"fmt"
	"io"
	"sync"
)

// Event is a status line that can also describe itself to a human.
type Event interface {
	Summary() string
}

// Emitter routes status events: NDJSON on stdout in ndjson mode, one-line
// summaries on stderr in text mode. Quiet suppresses everything but errors.
type Emitter struct {
	ndjson bool
	quiet  bool
	json   *NDJSONWriter
	mu     sync.Mutex
	text   io.Writer
}

// NewEmitter creates an emitter for the given format ("ndjson" or "text")
func NewEmitter(format string, stdout, stderr io.Writer, quiet bool) *Emitter {
	return &Emitter{
		ndjson: format == "ndjson",
		quiet:  quiet,
		json:   NewNDJSONWriter(stdout),
		text:   stderr,
	}
}

// Emit writes ev unless the emitter is quiet
func (e *Emitter) Emit(ev Event) error {
	if e == nil || e.quiet {
		return nil
	}
	return e.write(ev)
}

// Error writes an error line; errors are never silenced
func (e *Emitter) Error(source, code, message string, hint ...string) error {
	if e == nil {
		return nil
	}
	out := NewError(code, message, hint...)
	out.Source = source
	return e.write(out)
}

func (e *Emitter) write(ev Event) error {
	if e.ndjson {
		return e.json.Write(ev)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := fmt.Fprintln(e.text, ev.Summary())
	return err
}
