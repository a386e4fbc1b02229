package asciicast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
	"howett.net/plist"
)

// Format selects a document encoding.
type Format string

const (
	FormatJSON      Format = "json"
	FormatAsciicast Format = "asciicast"
	FormatYAML      Format = "yaml"
	FormatCBOR      Format = "cbor"
	FormatPlist     Format = "plist"
)

// Formats lists every supported encoding.
var Formats = []Format{FormatJSON, FormatAsciicast, FormatYAML, FormatCBOR, FormatPlist}

// ParseFormat resolves an encoding name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown encoding %q", s)
}

// Extension returns the conventional file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatAsciicast:
		return ".cast"
	case FormatYAML:
		return ".yaml"
	case FormatCBOR:
		return ".cbor"
	case FormatPlist:
		return ".plist"
	default:
		return ".json"
	}
}

// cborMode uses Core Deterministic Encoding so a transcript always produces
// identical bytes.
var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("asciicast: CBOR encoder initialization failed: " + err.Error())
	}
}

// castDocument is the asciicast v1 layout, where the event list is "stdout".
type castDocument struct {
	Version  int     `json:"version"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration Seconds `json:"duration"`
	Command  string  `json:"command"`
	Title    string  `json:"title"`
	Env      Env     `json:"env"`
	Stdout   []Event `json:"stdout"`
}

func toCast(t *Transcript) castDocument {
	return castDocument{
		Version:  t.Version,
		Width:    t.Width,
		Height:   t.Height,
		Duration: t.Duration,
		Command:  t.Command,
		Title:    t.Title,
		Env:      t.Env,
		Stdout:   t.Events,
	}
}

// Marshal renders t in the requested encoding.
func Marshal(t *Transcript, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, t, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes t to w in the requested encoding. JSON documents use a four
// space indent and a trailing newline.
func Encode(w io.Writer, t *Transcript, f Format) error {
	if t == nil {
		return fmt.Errorf("encode %s: nil transcript", f)
	}
	switch f {
	case FormatJSON, "":
		return encodeJSON(w, t)
	case FormatAsciicast:
		return encodeJSON(w, toCast(t))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatCBOR:
		b, err := cborMode.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode cbor: %w", err)
		}
		_, err = w.Write(b)
		return err
	case FormatPlist:
		enc := plist.NewEncoderForFormat(w, plist.XMLFormat)
		enc.Indent("\t")
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encode plist: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown encoding %q", f)
	}
}

func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// readDocument accepts both the "events" and the asciicast "stdout" layouts.
type readDocument struct {
	Transcript
	Stdout []Event `json:"stdout"`
}

// Read decodes a JSON transcript written with FormatJSON or FormatAsciicast.
func Read(r io.Reader) (*Transcript, error) {
	var doc readDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("read transcript: unsupported version %d", doc.Version)
	}
	t := doc.Transcript
	if t.Events == nil {
		t.Events = doc.Stdout
	}
	if t.Events == nil {
		t.Events = []Event{}
	}
	return &t, nil
}
