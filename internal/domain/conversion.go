package domain

import (
	"fmt"
	"time"
)

// SchemaVersion is stamped on every NDJSON status line.
const SchemaVersion = 1

// Converted is emitted when a capture has been written as a transcript
type Converted struct {
	Type          string  `json:"type"`          // "converted"
	SchemaVersion int     `json:"schemaVersion"` // 1
	RunID         string  `json:"run_id,omitempty"`
	Source        string  `json:"source"`
	Output        string  `json:"output,omitempty"`
	Session       string  `json:"session"`
	Sensor        string  `json:"sensor"`
	Hash          string  `json:"hash,omitempty"` // BLAKE3 of the raw capture
	Encoding      string  `json:"encoding"`
	Events        int     `json:"events"`
	Frames        int     `json:"frames"`
	Duration      float64 `json:"duration"`
	Closed        bool    `json:"closed"`
	Truncated     bool    `json:"truncated"`
	Timestamp     string  `json:"timestamp"`
}

// Skipped is emitted when a capture is not converted
type Skipped struct {
	Type          string `json:"type"` // "skipped"
	SchemaVersion int    `json:"schemaVersion"`
	RunID         string `json:"run_id,omitempty"`
	Source        string `json:"source"`
	Hash          string `json:"hash,omitempty"`
	Reason        string `json:"reason"` // too_small, session_open, already_converted
	Size          int    `json:"size"`
}

// WatchCycle summarizes one directory scan of the watch loop
type WatchCycle struct {
	Type          string `json:"type"` // "watch_cycle"
	SchemaVersion int    `json:"schemaVersion"`
	RunID         string `json:"run_id"`
	Cycle         int    `json:"cycle"`
	Scanned       int    `json:"scanned"`
	Converted     int    `json:"converted"`
	Skipped       int    `json:"skipped"`
	Errors        int    `json:"errors"`
	Timestamp     string `json:"timestamp"`
}

// Uploaded is emitted after a transcript was accepted by the upload endpoint
type Uploaded struct {
	Type          string `json:"type"` // "uploaded"
	SchemaVersion int    `json:"schemaVersion"`
	Source        string `json:"source"`
	URL           string `json:"url"`
}

// TmuxSession tells the caller how to attach to a detached replay
type TmuxSession struct {
	Type          string `json:"type"` // "tmux"
	SchemaVersion int    `json:"schemaVersion"`
	Session       string `json:"session"`
	Attach        string `json:"attach"`
}

// Summary renders a one-line human description.
func (c *Converted) Summary() string {
	target := c.Output
	if target == "" {
		target = "stdout"
	}
	s := fmt.Sprintf("converted %s -> %s (%d events, %.2fs)", c.Source, target, c.Events, c.Duration)
	if c.Truncated {
		s += " [truncated]"
	}
	return s
}

func (s *Skipped) Summary() string {
	return fmt.Sprintf("skipped %s: %s", s.Source, s.Reason)
}

func (w *WatchCycle) Summary() string {
	return fmt.Sprintf("cycle %d: scanned %d, converted %d, skipped %d, errors %d",
		w.Cycle, w.Scanned, w.Converted, w.Skipped, w.Errors)
}

func (u *Uploaded) Summary() string {
	return fmt.Sprintf("uploaded %s: %s", u.Source, u.URL)
}

func (t *TmuxSession) Summary() string {
	return fmt.Sprintf("tmux session: %s\nattach with: %s", t.Session, t.Attach)
}

// NewConverted creates a Converted event stamped with the current time
func NewConverted(source, output, session, sensor string) *Converted {
	return &Converted{
		Type:          "converted",
		SchemaVersion: SchemaVersion,
		Source:        source,
		Output:        output,
		Session:       session,
		Sensor:        sensor,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// NewSkipped creates a Skipped event
func NewSkipped(source, hash, reason string, size int) *Skipped {
	return &Skipped{
		Type:          "skipped",
		SchemaVersion: SchemaVersion,
		Source:        source,
		Hash:          hash,
		Reason:        reason,
		Size:          size,
	}
}

// NewWatchCycle creates a WatchCycle event for the given run
func NewWatchCycle(runID string, cycle int, at time.Time) *WatchCycle {
	return &WatchCycle{
		Type:          "watch_cycle",
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		Cycle:         cycle,
		Timestamp:     at.UTC().Format(time.RFC3339),
	}
}

func NewUploaded(source, url string) *Uploaded {
	return &Uploaded{Type: "uploaded", SchemaVersion: SchemaVersion, Source: source, URL: url}
}

func NewTmuxSession(session, attach string) *TmuxSession {
	return &TmuxSession{Type: "tmux", SchemaVersion: SchemaVersion, Session: session, Attach: attach}
}
