// Package ingest loads terminal captures from disk or from sensor events and
// decides whether they are worth converting.
package ingest

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// DefaultMinSize is the capture size at or below which a session is not
// worth converting: it holds little more than the login banner.
const DefaultMinSize = 300

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// zstdDecoder is shared; DecodeAll is safe for concurrent use.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("ingest: zstd decoder initialization failed: " + err.Error())
	}
}

// ErrNoCapture is returned for events that carry no capture bytes.
var ErrNoCapture = errors.New("event has no ttylog capture")

// Capture is one session's raw recording plus the metadata needed to title it.
type Capture struct {
	Session string
	Sensor  string
	// Closed is false for events of sessions that have not ended yet.
	Closed bool
	Data   []byte
	Source string
	Hash   string
}

// Eligible reports whether the capture should be converted in the background.
func (c *Capture) Eligible(minSize int) (bool, string) {
	if !c.Closed {
		return false, "session_open"
	}
	if len(c.Data) <= minSize {
		return false, "too_small"
	}
	return true, ""
}

// Hash returns the hex BLAKE3 digest of data.
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Decompress returns data unchanged unless it is a zstd frame.
func Decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

// ReadFile loads a capture from path. A file holding a sensor log-closed
// event (JSON) is unpacked; anything else is treated as a raw capture named
// after the file, recorded on sensor.
func ReadFile(path, sensor string) (*Capture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if looksLikeJSON(data) {
		c, err := ParseEvent(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if c.Sensor == "" {
			c.Sensor = sensor
		}
		c.Source = path
		return c, nil
	}

	return &Capture{
		Session: SessionFromPath(path),
		Sensor:  sensor,
		Closed:  true,
		Data:    data,
		Source:  path,
		Hash:    Hash(data),
	}, nil
}

// SessionFromPath derives a session id from a capture file name.
func SessionFromPath(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".zst", ".log", ".tty"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(data)
}

// LogClosedEvent is the payload a sensor sends when a session's capture is
// flushed.
type LogClosedEvent struct {
	EventID    string `json:"eventid,omitempty"`
	Session    string `json:"session"`
	SensorName string `json:"sensor_name"`
	SensorIP   string `json:"sensor_ip,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
	TTYLog     struct {
		Size        int    `json:"size"`
		LogLocation string `json:"log_location,omitempty"`
		LogBase64   string `json:"log_base64"`
	} `json:"ttylog"`
}

// ParseEvent decodes a log-closed event and its base64 capture. Events
// without an eventid are taken as log-closed; a session counts as closed when
// the event is a log-closed event or carries an end time.
func ParseEvent(data []byte) (*Capture, error) {
	var ev LogClosedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	if ev.TTYLog.LogBase64 == "" {
		return nil, ErrNoCapture
	}
	capture, err := base64.StdEncoding.DecodeString(ev.TTYLog.LogBase64)
	if err != nil {
		return nil, fmt.Errorf("decode ttylog: %w", err)
	}
	capture, err = Decompress(capture)
	if err != nil {
		return nil, err
	}

	closed := ev.EndTime != "" || ev.EventID == "" || ev.EventID == "cowrie.log.closed"
	return &Capture{
		Session: ev.Session,
		Sensor:  ev.SensorName,
		Closed:  closed,
		Data:    capture,
		Hash:    Hash(capture),
	}, nil
}
