package ttylog

// Verdict is the tracker's decision for one frame.
type Verdict int

const (
	VerdictAccept Verdict = iota
	VerdictSkipForeignChannel
	VerdictSkipWrongDirection
	VerdictSkipOp
	// VerdictEnd is returned for the CLOSE on the tracked channel and for
	// every frame offered after it.
	VerdictEnd
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictSkipForeignChannel:
		return "skip_foreign_channel"
	case VerdictSkipWrongDirection:
		return "skip_wrong_direction"
	case VerdictSkipOp:
		return "skip_op"
	case VerdictEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Tracker picks the single channel of a capture and the direction that carries
// its terminal output. Both are latched on first sight: the channel from the
// first frame of any kind, the direction from the first WRITE on that channel.
//
// A Tracker belongs to one decode pass and is not safe for concurrent use.
type Tracker struct {
	channel    uint32
	channelSet bool
	output     Direction
	outputSet  bool
	closed     bool
}

// Check classifies f and updates the latches.
func (t *Tracker) Check(f *Frame) Verdict {
	if t.closed {
		return VerdictEnd
	}

	// First frame fixes the channel for the rest of the pass
	if !t.channelSet {
		t.channelSet = true
		t.channel = f.Channel
	}
	if f.Channel != t.channel {
		return VerdictSkipForeignChannel
	}

	switch f.Op {
	case OpWrite:
		if !t.outputSet {
			t.outputSet = true
			t.output = f.Direction
		}
		if f.Direction != t.output {
			return VerdictSkipWrongDirection
		}
		return VerdictAccept
	case OpClose:
		t.closed = true
		return VerdictEnd
	default:
		// OPEN, EXEC and unknown ops are not part of the transcript
		return VerdictSkipOp
	}
}

// Channel returns the latched channel.
func (t *Tracker) Channel() (uint32, bool) {
	return t.channel, t.channelSet
}

// OutputDirection returns the latched output direction.
func (t *Tracker) OutputDirection() (Direction, bool) {
	return t.output, t.outputSet
}

// Closed reports whether the tracked channel has been closed.
func (t *Tracker) Closed() bool {
	return t.closed
}
