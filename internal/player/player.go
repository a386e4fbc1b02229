// Package player replays transcripts to a terminal in real time.
package player

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vburojevic/ttycast/internal/asciicast"
)

// ErrInvalidSpeed is returned for a non-positive speed factor.
var ErrInvalidSpeed = errors.New("speed must be greater than zero")

// Options controls pacing
type Options struct {
	// Speed divides every delay; 2 plays twice as fast.
	Speed float64
	// IdleLimit caps a single pause before speed is applied. Zero means no cap.
	IdleLimit time.Duration
	Clock     clock.Clock
}

// Stats describes a finished replay
type Stats struct {
	Events int
	Bytes  int
	Waited time.Duration
}

// Player writes events to out, waiting each event's delay first
type Player struct {
	out   io.Writer
	opts  Options
	clock clock.Clock
}

// New creates a player. A zero Speed means real time.
func New(out io.Writer, opts Options) (*Player, error) {
	if opts.Speed == 0 {
		opts.Speed = 1
	}
	if opts.Speed < 0 || math.IsNaN(opts.Speed) || math.IsInf(opts.Speed, 0) {
		return nil, ErrInvalidSpeed
	}
	c := opts.Clock
	if c == nil {
		c = clock.New()
	}
	return &Player{out: out, opts: opts, clock: c}, nil
}

// Wait returns the pause before an event with the given delay.
func (p *Player) Wait(delay asciicast.Seconds) time.Duration {
	if delay <= 0 {
		return 0
	}
	d := toDuration(float64(delay) * float64(time.Second))
	if p.opts.IdleLimit > 0 && d > p.opts.IdleLimit {
		d = p.opts.IdleLimit
	}
	return toDuration(float64(d) / p.opts.Speed)
}

// toDuration converts nanoseconds, saturating instead of wrapping.
func toDuration(ns float64) time.Duration {
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// Play replays t until it ends or ctx is cancelled.
func (p *Player) Play(ctx context.Context, t *asciicast.Transcript) (Stats, error) {
	var stats Stats
	if t == nil {
		return stats, nil
	}

	for _, ev := range t.Events {
		if d := p.Wait(ev.Delay); d > 0 {
			timer := p.clock.Timer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return stats, ctx.Err()
			case <-timer.C:
			}
			stats.Waited += d
		} else if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, err := io.WriteString(p.out, ev.Text)
		stats.Bytes += n
		if err != nil {
			return stats, err
		}
		stats.Events++
	}
	return stats, nil
}
