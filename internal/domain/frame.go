package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// PreviewLimit caps the payload preview kept on a FrameRecord.
const PreviewLimit = 40

// FrameRecord is one row of an inspect trace: a decoded frame header plus the
// verdict the channel tracker gave it.
type FrameRecord struct {
	Type          string  `json:"type"` // "frame"
	SchemaVersion int     `json:"schemaVersion"`
	Index         int     `json:"index"`
	Offset        int     `json:"offset"`
	Op            string  `json:"op"`
	OpCode        int32   `json:"op_code"`
	Channel       uint32  `json:"channel"`
	Direction     int32   `json:"direction"`
	Length        int32   `json:"length"`
	Sec           uint32  `json:"sec"`
	Usec          uint32  `json:"usec"`
	Elapsed       float64 `json:"elapsed"`
	Verdict       string  `json:"verdict"`
	Preview       string  `json:"preview,omitempty"`
}

// InspectSummary closes an inspect trace
type InspectSummary struct {
	Type          string         `json:"type"` // "inspect_summary"
	SchemaVersion int            `json:"schemaVersion"`
	Source        string         `json:"source"`
	Frames        int            `json:"frames"`
	Shown         int            `json:"shown"`
	Accepted      int            `json:"accepted"`
	Skipped       map[string]int `json:"skipped,omitempty"`
	Channel       *uint32        `json:"channel,omitempty"`
	Direction     *int32         `json:"direction,omitempty"`
	Closed        bool           `json:"closed"`
	Truncated     bool           `json:"truncated"`
	Consumed      int            `json:"consumed"`
	Size          int            `json:"size"`
	Duration      float64        `json:"duration"`
}

func (s *InspectSummary) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d frames, %d accepted, %.2fs", s.Source, s.Frames, s.Accepted, s.Duration)
	if s.Channel != nil {
		fmt.Fprintf(&b, ", channel %d", *s.Channel)
	}
	if s.Direction != nil {
		fmt.Fprintf(&b, ", direction %d", *s.Direction)
	}
	switch {
	case s.Closed:
		b.WriteString(", closed")
	case s.Truncated:
		fmt.Fprintf(&b, ", truncated after %d of %d bytes", s.Consumed, s.Size)
	}
	return b.String()
}

// Preview renders payload as printable text, escaping control bytes and
// cutting it to PreviewLimit runes.
func Preview(payload []byte) string {
	var b strings.Builder
	n := 0
	for len(payload) > 0 && n < PreviewLimit {
		r, size := utf8.DecodeRune(payload)
		first := payload[0]
		payload = payload[size:]
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&b, `\x%02x`, first)
		case r < 0x20 || r == 0x7f:
			q := strconv.QuoteRune(r)
			b.WriteString(q[1 : len(q)-1])
		default:
			b.WriteRune(r)
		}
		n++
	}
	if len(payload) > 0 {
		b.WriteString("…")
	}
	return b.String()
}
