// Package asciicast holds the replayable transcript produced from a terminal
// capture and its document encodings.
//
// A Transcript is an asciicast version 1 recording: fixed terminal geometry,
// metadata, and an ordered list of (delay, text) output events. The default
// JSON document names the event list "events"; the asciicast encoding names
// it "stdout" for third-party players and the upload endpoint.
package asciicast

import (
	"errors"
	"fmt"
	"strings"
)

// Fixed recording metadata.
const (
	Version        = 1
	DefaultWidth   = 80
	DefaultHeight  = 24
	DefaultCommand = "/bin/bash"
	DefaultShell   = "/bin/bash"
	DefaultTerm    = "xterm256-color"

	titleFormat = "Cowrie Recording: %s_%s"
)

var (
	// ErrMissingSession is returned when the caller supplies no session id.
	ErrMissingSession = errors.New("session identifier is required")
	// ErrMissingSensor is returned when the caller supplies no sensor id.
	ErrMissingSensor = errors.New("sensor identifier is required")
)

// Env is the recorded terminal environment.
type Env struct {
	Term  string `json:"TERM" yaml:"TERM" cbor:"TERM" plist:"TERM"`
	Shell string `json:"SHELL" yaml:"SHELL" cbor:"SHELL" plist:"SHELL"`
}

// Transcript is a complete, immutable recording.
type Transcript struct {
	Version  int     `json:"version" yaml:"version" cbor:"version" plist:"version"`
	Width    int     `json:"width" yaml:"width" cbor:"width" plist:"width"`
	Height   int     `json:"height" yaml:"height" cbor:"height" plist:"height"`
	Duration Seconds `json:"duration" yaml:"duration" cbor:"duration" plist:"duration"`
	Command  string  `json:"command" yaml:"command" cbor:"command" plist:"command"`
	Title    string  `json:"title" yaml:"title" cbor:"title" plist:"title"`
	Env      Env     `json:"env" yaml:"env" cbor:"env" plist:"env"`
	Events   []Event `json:"events" yaml:"events" cbor:"events" plist:"events"`
}

// Empty reports whether the recording has no output events.
func (t *Transcript) Empty() bool {
	return len(t.Events) == 0
}

// Title formats the recording title for a session on a sensor.
func Title(session, sensor string) string {
	return fmt.Sprintf(titleFormat, session, sensor)
}

// Builder accumulates output events in arrival order.
type Builder struct {
	title    string
	duration Seconds
	events   []Event
}

// NewBuilder starts a transcript for the given session and sensor.
func NewBuilder(session, sensor string) (*Builder, error) {
	if strings.TrimSpace(session) == "" {
		return nil, ErrMissingSession
	}
	if strings.TrimSpace(sensor) == "" {
		return nil, ErrMissingSensor
	}
	return &Builder{title: Title(session, sensor)}, nil
}

// Append adds one output write, to be rendered after delay seconds.
func (b *Builder) Append(delay float64, text []byte) {
	b.events = append(b.events, Event{Delay: Seconds(delay), Text: string(text)})
}

// SetDuration records the total session length.
func (b *Builder) SetDuration(d float64) {
	b.duration = Seconds(d)
}

// Len is the number of events appended so far.
func (b *Builder) Len() int {
	return len(b.events)
}

// Build returns the finished transcript. The builder must not be reused.
func (b *Builder) Build() *Transcript {
	events := b.events
	if events == nil {
		events = []Event{}
	}
	return &Transcript{
		Version:  Version,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		Duration: b.duration,
		Command:  DefaultCommand,
		Title:    b.title,
		Env: Env{
			Term:  DefaultTerm,
			Shell: DefaultShell,
		},
		Events: events,
	}
}
