package asciicast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Seconds is a time value in floating point seconds. It always encodes to
// JSON with a fractional part (1.0 rather than 1), as existing consumers of
// converted recordings expect.
type Seconds float64

// MarshalJSON implements json.Marshaler.
func (s Seconds) MarshalJSON() ([]byte, error) {
	out := strconv.FormatFloat(float64(s), 'f', -1, 64)
	if !strings.ContainsAny(out, ".eE") {
		out += ".0"
	}
	return []byte(out), nil
}

// Event is one terminal output write and the pause that precedes it.
type Event struct {
	Delay Seconds
	Text  string
}

// MarshalJSON encodes the event as a [delay, text] pair.
func (e Event) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	delay, err := e.Delay.MarshalJSON()
	if err != nil {
		return nil, err
	}
	buf.WriteByte('[')
	buf.Write(delay)
	buf.WriteByte(',')

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e.Text); err != nil {
		return nil, err
	}
	// Encoder terminates every value with a newline
	buf.Truncate(buf.Len() - 1)
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a [delay, text] pair.
func (e *Event) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("event: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("event: expected [delay, text], got %d elements", len(pair))
	}
	var delay float64
	if err := json.Unmarshal(pair[0], &delay); err != nil {
		return fmt.Errorf("event delay: %w", err)
	}
	var text string
	if err := json.Unmarshal(pair[1], &text); err != nil {
		return fmt.Errorf("event text: %w", err)
	}
	e.Delay = Seconds(delay)
	e.Text = text
	return nil
}

// MarshalYAML encodes the event as a two element sequence.
func (e Event) MarshalYAML() (interface{}, error) {
	return []interface{}{float64(e.Delay), e.Text}, nil
}

// MarshalCBOR encodes the event as a two element array.
func (e Event) MarshalCBOR() ([]byte, error) {
	return cborMode.Marshal([]interface{}{float64(e.Delay), e.Text})
}

// MarshalPlist encodes the event as a two element array.
func (e Event) MarshalPlist() (interface{}, error) {
	return []interface{}{float64(e.Delay), e.Text}, nil
}
