package cli

import (
	"errors"
	"io/fs"
	"os"

	"github.com/vburojevic/ttycast/internal/asciicast"
	"github.com/vburojevic/ttycast/internal/domain"
	"github.com/vburojevic/ttycast/internal/ingest"
	"github.com/vburojevic/ttycast/internal/ttylog"
)

const missingMetadataHint = "pass --sensor (or set defaults.sensor) for raw captures"

// loadCapture reads a capture file and reports failures with CLI error codes.
func loadCapture(globals *Globals, path, sensor string) (*ingest.Capture, error) {
	capture, err := ingest.ReadFile(path, sensor)
	if err == nil {
		return capture, nil
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return nil, outputErrorCommon(globals, "READ_FAILED", err.Error())
	}
	return nil, outputErrorCommon(globals, "INVALID_EVENT", err.Error(),
		"expected a raw ttylog capture (optionally zstd) or a log-closed event carrying ttylog.log_base64")
}

// decodeCapture runs one decode pass over capture.
func decodeCapture(globals *Globals, capture *ingest.Capture) (*asciicast.Transcript, ttylog.Stats, error) {
	var d ttylog.Decoder
	t, stats, err := d.Decode(capture.Data, capture.Session, capture.Sensor)
	if err != nil {
		if errors.Is(err, asciicast.ErrMissingSession) || errors.Is(err, asciicast.ErrMissingSensor) {
			return nil, stats, outputErrorCommon(globals, "MISSING_METADATA", capture.Source+": "+err.Error(), missingMetadataHint)
		}
		return nil, stats, err
	}
	globals.log().With("source", capture.Source, "session", capture.Session).
		Debug("decoded %d of %d frames (closed=%v truncated=%v)", stats.Accepted, stats.Frames, stats.Closed, stats.Truncated)
	return t, stats, nil
}

// loadTranscript accepts either a transcript document or a capture.
func loadTranscript(globals *Globals, path, sensor string) (*asciicast.Transcript, error) {
	if f, err := os.Open(path); err == nil {
		t, readErr := asciicast.Read(f)
		f.Close()
		if readErr == nil {
			return t, nil
		}
		globals.Debug("%s is not a transcript, decoding as capture: %v", path, readErr)
	}

	capture, err := loadCapture(globals, path, sensor)
	if err != nil {
		return nil, err
	}
	t, _, err := decodeCapture(globals, capture)
	return t, err
}

func convertedEvent(globals *Globals, capture *ingest.Capture, output string, format asciicast.Format, t *asciicast.Transcript, stats ttylog.Stats) *domain.Converted {
	ev := domain.NewConverted(capture.Source, output, capture.Session, capture.Sensor)
	ev.RunID = globals.RunID
	ev.Hash = capture.Hash
	ev.Encoding = string(format)
	ev.Events = len(t.Events)
	ev.Frames = stats.Frames
	ev.Duration = float64(t.Duration)
	ev.Closed = stats.Closed
	ev.Truncated = stats.Truncated
	return ev
}
