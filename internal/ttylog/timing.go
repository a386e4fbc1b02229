package ttylog

// Elapsed converts a frame timestamp to replay seconds. The sensor's clock
// runs at twice the scale players expect, hence the halving.
func Elapsed(sec, usec uint32) float64 {
	t := float64(sec) + float64(usec)/1000000
	return t / 2
}

// Timing turns accepted frame timestamps into replay delays.
type Timing struct {
	// previous is 0 until a non-zero elapsed time has been seen
	previous float64
	duration float64
}

// Advance records the frame timestamp and returns the delay since the
// previously accepted frame, or 0 for the first one.
func (t *Timing) Advance(sec, usec uint32) float64 {
	elapsed := Elapsed(sec, usec)
	delay := 0.0
	if t.previous != 0 {
		delay = elapsed - t.previous
	}
	t.previous = elapsed
	t.duration = elapsed
	return delay
}

// Duration is the elapsed time of the most recently accepted frame.
func (t *Timing) Duration() float64 {
	return t.duration
}
