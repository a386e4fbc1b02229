package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/vburojevic/ttycast/internal/domain"
)

// SchemaVersion of every NDJSON line written by this package.
const SchemaVersion = domain.SchemaVersion

// ErrorOutput is the NDJSON shape of a failure
type ErrorOutput struct {
	Type          string `json:"type"` // "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
	Source        string `json:"source,omitempty"`
}

// NDJSONWriter writes one JSON object per line. It is safe for concurrent use.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter creates a writer on w
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{enc: enc}
}

// Write encodes v as a single line
func (w *NDJSONWriter) Write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// WriteError writes an error line with an optional hint
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	return w.Write(NewError(code, message, hint...))
}

// NewError builds an ErrorOutput
func NewError(code, message string, hint ...string) *ErrorOutput {
	e := &ErrorOutput{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		e.Hint = hint[0]
	}
	return e
}

func (e *ErrorOutput) Summary() string {
	s := "Error [" + e.Code + "]: " + e.Message
	if e.Source != "" {
		s = e.Source + ": " + s
	}
	if e.Hint != "" {
		s += " (hint: " + e.Hint + ")"
	}
	return s
}
