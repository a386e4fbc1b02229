package cli

import (
	"fmt"

	"github.com/vburojevic/ttycast/internal/asciicast"
)

// ConvertCmd turns one capture into a transcript document
type ConvertCmd struct {
	File     string `arg:"" help:"Raw ttylog capture (optionally zstd) or a sensor log-closed event (JSON)"`
	Output   string `short:"o" help:"Write the transcript to this file or directory instead of stdout"`
	Encoding string `short:"e" default:"${config_encoding}" help:"Transcript encoding: json, asciicast, yaml, cbor, plist"`
	Sensor   string `default:"${config_sensor}" help:"Sensor name for raw captures"`
	Session  string `help:"Override the session id (defaults to the event's session or the file name)"`
}

// Run executes the convert command
func (c *ConvertCmd) Run(globals *Globals) error {
	format, err := parseEncoding(globals, c.Encoding)
	if err != nil {
		return err
	}

	capture, err := loadCapture(globals, c.File, c.Sensor)
	if err != nil {
		return err
	}
	if c.Session != "" {
		capture.Session = c.Session
	}

	t, stats, err := decodeCapture(globals, capture)
	if err != nil {
		return err
	}

	toStdout := c.Output == "" || c.Output == "-"
	path := ""
	if toStdout {
		if err := asciicast.Encode(globals.Stdout, t, format); err != nil {
			return outputErrorCommon(globals, "ENCODE_FAILED", err.Error())
		}
	} else {
		path, err = resolveOutputPath(c.Output, capture.Session, format)
		if err != nil {
			return outputErrorCommon(globals, "INVALID_EVENT", err.Error(), "pass --session or name the output file with -o")
		}
		if samePath(path, c.File) {
			return outputErrorCommon(globals, "WRITE_FAILED", fmt.Sprintf("refusing to overwrite the input %s", c.File), "choose another -o")
		}
		if err := writeCastFile(path, t, format); err != nil {
			return outputErrorCommon(globals, "WRITE_FAILED", err.Error())
		}
	}

	// stdout already carries the document in ndjson mode
	if toStdout && globals.Format == "ndjson" {
		return nil
	}
	return newEmitter(globals).Emit(convertedEvent(globals, capture, path, format, t, stats))
}

func parseEncoding(globals *Globals, name string) (asciicast.Format, error) {
	if name == "" {
		name = globals.config().Defaults.Encoding
	}
	format, err := asciicast.ParseFormat(name)
	if err != nil {
		return "", outputErrorCommon(globals, "INVALID_FLAGS", err.Error(), "use one of json, asciicast, yaml, cbor, plist")
	}
	return format, nil
}
