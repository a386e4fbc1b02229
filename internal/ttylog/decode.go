// Package ttylog decodes raw terminal captures recorded by the honeypot
// sensor into replayable transcripts.
//
// A capture is a flat sequence of frames: a 24 byte little-endian header
// followed by a payload. Frames from several pseudo-terminals and from both
// sides of the conversation share one stream. Decoding is a single pass:
//
//	Reader -> Tracker (channel / direction filter) -> Timing (delays)
//	       -> NormalizeNewlines -> asciicast.Builder
//
// Truncated captures are not errors. Decoding stops at the first frame that
// does not fit and returns what was accumulated.
package ttylog

import (
	"github.com/vburojevic/ttycast/internal/asciicast"
)

// Stats describes how a decode pass consumed its input.
type Stats struct {
	Frames   int
	Accepted int
	Skipped  map[Verdict]int
	// Consumed is the number of bytes covered by complete frames.
	Consumed int
	// Closed is true when the pass ended on the tracked channel's CLOSE.
	Closed bool
	// Truncated is true when trailing bytes could not form a complete frame.
	Truncated bool
	Channel   uint32
	Direction Direction
}

// Decoder runs decode passes. The zero value is ready to use.
type Decoder struct {
	// Observe, when set, is called for every frame read with the tracker's
	// verdict, in input order.
	Observe func(f Frame, v Verdict)
}

// Decode converts a capture into a transcript titled after session and sensor.
// The only error is missing metadata; malformed or truncated input yields a
// shorter (possibly empty) transcript.
func Decode(buf []byte, session, sensor string) (*asciicast.Transcript, error) {
	var d Decoder
	t, _, err := d.Decode(buf, session, sensor)
	return t, err
}

// Decode converts a capture and reports pass statistics.
func (d *Decoder) Decode(buf []byte, session, sensor string) (*asciicast.Transcript, Stats, error) {
	builder, err := asciicast.NewBuilder(session, sensor)
	if err != nil {
		return nil, Stats{}, err
	}

	var (
		tracker Tracker
		timing  Timing
		stats   = Stats{Skipped: make(map[Verdict]int)}
	)

	reader := NewReader(buf)
	for f := range reader.Frames() {
		stats.Frames++
		verdict := tracker.Check(&f)
		if d.Observe != nil {
			d.Observe(f, verdict)
		}

		switch verdict {
		case VerdictAccept:
			stats.Accepted++
			delay := timing.Advance(f.Sec, f.Usec)
			builder.Append(delay, NormalizeNewlines(f.Payload))
		case VerdictEnd:
			stats.Closed = true
		default:
			stats.Skipped[verdict]++
		}
		if stats.Closed {
			break
		}
	}

	stats.Consumed = reader.Offset()
	stats.Truncated = !stats.Closed && reader.Remaining() > 0
	stats.Channel, _ = tracker.Channel()
	stats.Direction, _ = tracker.OutputDirection()

	builder.SetDuration(timing.Duration())
	return builder.Build(), stats, nil
}
