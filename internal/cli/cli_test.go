package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/ttycast/internal/asciicast"
	"github.com/vburojevic/ttycast/internal/config"
	"github.com/vburojevic/ttycast/internal/tmux"
	"github.com/vburojevic/ttycast/internal/ttylog"
	"github.com/vburojevic/ttycast/internal/upload"
)

// testGlobals creates a Globals struct with captured stdout/stderr
func testGlobals(format string) (*Globals, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &Globals{
		Format:  format,
		Quiet:   false,
		Verbose: false,
		Stdout:  stdout,
		Stderr:  stderr,
		Config:  config.Default(),
		RunID:   "test-run",
	}, stdout, stderr
}

// sampleCapture has one OPEN, two accepted outputs, one echoed input, one
// frame from a foreign channel and the CLOSE. pad adds bytes to the last
// accepted payload.
func sampleCapture(pad int) []byte {
	var buf []byte
	for _, f := range []ttylog.Frame{
		{Op: ttylog.OpOpen, Channel: 5},
		{Op: ttylog.OpWrite, Channel: 5, Direction: ttylog.DirOutput, Sec: 2, Payload: []byte("$ ")},
		{Op: ttylog.OpWrite, Channel: 5, Direction: ttylog.DirInput, Sec: 3, Payload: []byte("ls\n")},
		{Op: ttylog.OpWrite, Channel: 5, Direction: ttylog.DirOutput, Sec: 4, Usec: 500000, Payload: []byte("bin\n" + strings.Repeat("x", pad))},
		{Op: ttylog.OpWrite, Channel: 7, Direction: ttylog.DirOutput, Sec: 5, Payload: []byte("other")},
		{Op: ttylog.OpClose, Channel: 5, Sec: 6},
	} {
		buf = ttylog.AppendFrame(buf, f)
	}
	return buf
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func logClosedEvent(t *testing.T, session, sensor string, capture []byte, ended bool) []byte {
	t.Helper()
	ev := map[string]interface{}{
		"eventid":     "cowrie.log.closed",
		"session":     session,
		"sensor_name": sensor,
		"ttylog": map[string]interface{}{
			"size":       len(capture),
			"log_base64": base64.StdEncoding.EncodeToString(capture),
		},
	}
	if !ended {
		ev["eventid"] = "cowrie.session.params"
	} else {
		ev["end_time"] = "2025-12-14T22:00:00Z"
	}
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func ndjsonLines(t *testing.T, out string) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		lines = append(lines, m)
	}
	return lines
}

func linesOfType(lines []map[string]interface{}, typ string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, l := range lines {
		if l["type"] == typ {
			out = append(out, l)
		}
	}
	return out
}

// --- Convert Command Tests ---

func TestConvertCmd_Run(t *testing.T) {
	dir := t.TempDir()
	capturePath := writeFile(t, dir, "s1.log", sampleCapture(0))

	t.Run("writes the transcript to stdout", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConvertCmd{File: capturePath, Sensor: "honeypot"}

		require.NoError(t, cmd.Run(globals))

		tr, err := asciicast.Read(bytes.NewReader(stdout.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, "Cowrie Recording: s1_honeypot", tr.Title)
		require.Len(t, tr.Events, 2)
		assert.Equal(t, asciicast.Event{Delay: 0, Text: "$ "}, tr.Events[0])
		assert.Equal(t, asciicast.Event{Delay: 1.25, Text: "bin\r\n"}, tr.Events[1])
		assert.Equal(t, asciicast.Seconds(2.25), tr.Duration)
		assert.Contains(t, stdout.String(), `"duration": 2.25`)
		assert.NotContains(t, stdout.String(), `"type"`)
	})

	t.Run("writes into an output directory", func(t *testing.T) {
		globals, _, stderr := testGlobals("text")
		out := t.TempDir()
		cmd := &ConvertCmd{File: capturePath, Sensor: "honeypot", Output: out, Encoding: "yaml"}

		require.NoError(t, cmd.Run(globals))

		data, err := os.ReadFile(filepath.Join(out, "s1.yaml"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "Cowrie Recording: s1_honeypot")
		assert.Contains(t, stderr.String(), "converted "+capturePath)
	})

	t.Run("emits a converted line for file output", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		out := filepath.Join(t.TempDir(), "cast.cast")
		cmd := &ConvertCmd{File: capturePath, Sensor: "honeypot", Output: out, Encoding: "asciicast", Session: "override"}

		require.NoError(t, cmd.Run(globals))

		lines := ndjsonLines(t, stdout.String())
		require.Len(t, lines, 1)
		assert.Equal(t, "converted", lines[0]["type"])
		assert.Equal(t, "asciicast", lines[0]["encoding"])
		assert.Equal(t, "override", lines[0]["session"])
		assert.Equal(t, float64(2), lines[0]["events"])
		assert.Equal(t, float64(6), lines[0]["frames"])
		assert.Equal(t, true, lines[0]["closed"])
		assert.NotEmpty(t, lines[0]["hash"])
		assert.Equal(t, "test-run", lines[0]["run_id"])

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"stdout"`)
		assert.Contains(t, string(data), "Cowrie Recording: override_honeypot")
	})

	t.Run("unpacks a log-closed event", func(t *testing.T) {
		eventPath := writeFile(t, t.TempDir(), "event.json", logClosedEvent(t, "abc", "sensor-9", sampleCapture(0), true))
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConvertCmd{File: eventPath}

		require.NoError(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), "Cowrie Recording: abc_sensor-9")
	})

	t.Run("requires a sensor for raw captures", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConvertCmd{File: capturePath}

		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), `"code":"MISSING_METADATA"`)
	})

	t.Run("reports unreadable files", func(t *testing.T) {
		globals, _, stderr := testGlobals("text")
		cmd := &ConvertCmd{File: filepath.Join(dir, "missing.log"), Sensor: "x"}

		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stderr.String(), "Error [READ_FAILED]")
	})

	t.Run("rejects unknown encodings", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConvertCmd{File: capturePath, Sensor: "x", Encoding: "toml"}

		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), `"code":"INVALID_FLAGS"`)
	})
}

// --- Inspect Command Tests ---

func TestInspectCmd_Run(t *testing.T) {
	capturePath := writeFile(t, t.TempDir(), "s1.log", sampleCapture(0))

	t.Run("traces every frame as NDJSON", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &InspectCmd{File: capturePath}

		require.NoError(t, cmd.Run(globals))

		lines := ndjsonLines(t, stdout.String())
		frames := linesOfType(lines, "frame")
		require.Len(t, frames, 6)
		verdicts := make([]string, 0, len(frames))
		for _, f := range frames {
			verdicts = append(verdicts, f["verdict"].(string))
		}
		assert.Equal(t, []string{"skip_op", "accept", "skip_wrong_direction", "accept", "skip_foreign_channel", "end"}, verdicts)
		assert.Equal(t, `bin\n`, frames[3]["preview"])

		summary := linesOfType(lines, "inspect_summary")
		require.Len(t, summary, 1)
		assert.Equal(t, float64(6), summary[0]["frames"])
		assert.Equal(t, float64(2), summary[0]["accepted"])
		assert.Equal(t, float64(5), summary[0]["channel"])
		assert.Equal(t, float64(2), summary[0]["direction"])
		assert.Equal(t, true, summary[0]["closed"])
		assert.Equal(t, 2.25, summary[0]["duration"])
	})

	t.Run("filters with where clauses", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &InspectCmd{File: capturePath, Where: []string{"verdict=accept", "len>=3"}}

		require.NoError(t, cmd.Run(globals))

		lines := ndjsonLines(t, stdout.String())
		frames := linesOfType(lines, "frame")
		require.Len(t, frames, 1)
		assert.Equal(t, float64(3), frames[0]["index"])
		assert.Equal(t, float64(1), linesOfType(lines, "inspect_summary")[0]["shown"])
	})

	t.Run("limits and pattern filters", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &InspectCmd{File: capturePath, Pattern: "^(ls|other)", Limit: 1}

		require.NoError(t, cmd.Run(globals))

		frames := linesOfType(ndjsonLines(t, stdout.String()), "frame")
		require.Len(t, frames, 1)
		assert.Equal(t, "skip_wrong_direction", frames[0]["verdict"])
	})

	t.Run("renders a table in text mode", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &InspectCmd{File: capturePath}

		require.NoError(t, cmd.Run(globals))

		out := stdout.String()
		assert.Contains(t, strings.ToUpper(out), "VERDICT")
		assert.Contains(t, out, "skip_foreign_channel")
		assert.Contains(t, out, "6 frames, 2 accepted")
		assert.Contains(t, out, "closed")
	})

	t.Run("rejects bad where clauses", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &InspectCmd{File: capturePath, Where: []string{"bogus~~"}}

		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), `"code":"INVALID_WHERE"`)
	})

	t.Run("ui needs a terminal", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &InspectCmd{File: capturePath, UI: true}

		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), "interactive terminal")
	})

	t.Run("reports truncation", func(t *testing.T) {
		data := sampleCapture(0)
		truncated := writeFile(t, t.TempDir(), "cut.log", data[:len(data)-30])
		globals, stdout, _ := testGlobals("ndjson")

		require.NoError(t, (&InspectCmd{File: truncated}).Run(globals))

		summary := linesOfType(ndjsonLines(t, stdout.String()), "inspect_summary")[0]
		assert.Equal(t, true, summary["truncated"])
		assert.Equal(t, false, summary["closed"])
	})
}

// --- Play Command Tests ---

func TestPlayCmd_Run(t *testing.T) {
	dir := t.TempDir()
	capturePath := writeFile(t, dir, "s1.log", sampleCapture(0))

	t.Run("replays a capture", func(t *testing.T) {
		globals, stdout, stderr := testGlobals("text")
		cmd := &PlayCmd{File: capturePath, Sensor: "honeypot", Speed: 1000}

		require.NoError(t, cmd.Run(globals))
		assert.Equal(t, "$ bin\r\n", stdout.String())
		assert.Contains(t, stderr.String(), "Replayed 2 events")
	})

	t.Run("replays a transcript document with a banner", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		tr := &asciicast.Transcript{
			Version: asciicast.Version,
			Title:   "demo",
			Events:  []asciicast.Event{{Delay: 0, Text: "hi"}},
		}
		var doc bytes.Buffer
		require.NoError(t, asciicast.Encode(&doc, tr, asciicast.FormatAsciicast))
		castPath := writeFile(t, dir, "demo.cast", doc.Bytes())

		cmd := &PlayCmd{File: castPath, Banner: true}
		require.NoError(t, cmd.Run(globals))

		out := stdout.String()
		assert.Contains(t, out, "  demo\r\n")
		assert.True(t, strings.HasSuffix(out, "hi"))
	})

	t.Run("rejects a negative speed", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &PlayCmd{File: capturePath, Sensor: "honeypot", Speed: -1}

		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), `"code":"INVALID_FLAGS"`)
	})
}

type fakeTmux struct {
	calls [][]string
}

func (f *fakeTmux) Command(req ...string) (string, error) {
	f.calls = append(f.calls, req)
	if req[0] == "has-session" {
		return "", errors.New("no session")
	}
	return "", nil
}

func TestPlayCmd_Tmux(t *testing.T) {
	capturePath := writeFile(t, t.TempDir(), "s1.log", sampleCapture(0))

	runner := &fakeTmux{}
	origAvail, origNew, origExe := tmuxAvailable, newTmuxManager, executablePath
	t.Cleanup(func() { tmuxAvailable, newTmuxManager, executablePath = origAvail, origNew, origExe })
	tmuxAvailable = func() bool { return true }
	newTmuxManager = func(cfg *tmux.Config) (*tmux.Manager, error) {
		return tmux.NewManagerWithRunner(cfg, runner), nil
	}
	executablePath = func() (string, error) { return "/usr/local/bin/ttycast", nil }

	globals, stdout, _ := testGlobals("ndjson")
	cmd := &PlayCmd{File: capturePath, Sensor: "honeypot", Speed: 2, Tmux: true}
	require.NoError(t, cmd.Run(globals))

	lines := ndjsonLines(t, stdout.String())
	require.Len(t, lines, 1)
	assert.Equal(t, "tmux", lines[0]["type"])
	assert.Equal(t, "ttycast-s1", lines[0]["session"])
	assert.Equal(t, "tmux attach -t ttycast-s1", lines[0]["attach"])

	var newSession []string
	for _, c := range runner.calls {
		if c[0] == "new-session" {
			newSession = c
		}
	}
	require.NotNil(t, newSession)
	script := newSession[len(newSession)-1]
	assert.Contains(t, script, "/usr/local/bin/ttycast play")
	assert.Contains(t, script, "--banner --speed 2")
	assert.Contains(t, script, "--sensor honeypot")

	t.Run("fails without tmux", func(t *testing.T) {
		tmuxAvailable = func() bool { return false }
		globals, stdout, _ := testGlobals("ndjson")
		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), `"code":"TMUX_UNAVAILABLE"`)
	})
}

// --- Upload Command Tests ---

type fakeUploader struct {
	docs  [][]byte
	reply string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, doc []byte) (string, error) {
	f.docs = append(f.docs, doc)
	return f.reply, f.err
}

func stubUploader(t *testing.T, u *fakeUploader) *[]string {
	t.Helper()
	var creds []string
	orig := newUploader
	t.Cleanup(func() { newUploader = orig })
	newUploader = func(url, username, token string) (upload.Uploader, error) {
		creds = []string{url, username, token}
		return u, nil
	}
	return &creds
}

func TestUploadCmd_Run(t *testing.T) {
	capturePath := writeFile(t, t.TempDir(), "s1.log", sampleCapture(0))

	t.Run("uploads asciicast v1", func(t *testing.T) {
		u := &fakeUploader{reply: "https://asciinema.example/a/1"}
		creds := stubUploader(t, u)

		globals, stdout, _ := testGlobals("ndjson")
		globals.Config.Upload.Username = "ops"
		globals.Config.Upload.Token = "secret"
		cmd := &UploadCmd{File: capturePath, Sensor: "honeypot"}

		require.NoError(t, cmd.Run(globals))

		require.Len(t, u.docs, 1)
		assert.Contains(t, string(u.docs[0]), `"stdout"`)
		assert.Equal(t, []string{config.DefaultUploadURL, "ops", "secret"}, *creds)

		lines := ndjsonLines(t, stdout.String())
		require.Len(t, lines, 1)
		assert.Equal(t, "uploaded", lines[0]["type"])
		assert.Equal(t, "https://asciinema.example/a/1", lines[0]["url"])
	})

	t.Run("reports the server status", func(t *testing.T) {
		u := &fakeUploader{err: &upload.StatusError{Status: 401, Message: "bad token"}}
		stubUploader(t, u)

		globals, _, stderr := testGlobals("text")
		cmd := &UploadCmd{File: capturePath, Sensor: "honeypot", Token: "flag-token"}

		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stderr.String(), "Error [UPLOAD_FAILED]: upload returned status_code: 401 - bad token")
	})
}

// --- Config Command Tests ---

func TestConfigShowCmd_Run(t *testing.T) {
	t.Run("outputs config in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "Current Configuration:")
		assert.Contains(t, output, "format:")
		assert.Contains(t, output, "Defaults:")
		assert.Contains(t, output, "min_size: 300")
	})

	t.Run("outputs config in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		globals.Config.Upload.Token = "secret"
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "config", result["type"])
		assert.Contains(t, result, "format")
		assert.Contains(t, result, "defaults")
		assert.Contains(t, result, "watch")
		assert.NotContains(t, stdout.String(), "secret")
	})
}

func TestConfigPathCmd_Run(t *testing.T) {
	t.Run("outputs path info in text format when no config", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigPathCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		// Either shows the path or says no config found
		assert.True(t, strings.Contains(output, "Config file:") || strings.Contains(output, "No configuration file found"))
	})

	t.Run("outputs path in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConfigPathCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "config_path", result["type"])
		assert.Contains(t, result, "path")
	})
}

func TestConfigGenerateCmd_Run(t *testing.T) {
	globals, stdout, _ := testGlobals("text")
	cmd := &ConfigGenerateCmd{}

	require.NoError(t, cmd.Run(globals))

	output := stdout.String()
	assert.Contains(t, output, "# ttycast configuration file")
	assert.Contains(t, output, "format: ndjson")
	assert.Contains(t, output, "min_size: 300")
	assert.Contains(t, output, "interval: 10s")

	// the sample must load cleanly
	path := writeFile(t, t.TempDir(), "ttycast.yaml", stdout.Bytes())
	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

// --- Schema Command Tests ---

func TestSchemaCmd_Run(t *testing.T) {
	t.Run("outputs all schemas by default", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &SchemaCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "ttycast Output Schemas", result["title"])

		defs := result["definitions"].(map[string]interface{})
		for _, name := range []string{"transcript", "converted", "skipped", "watch_cycle", "frame", "inspect_summary", "error", "version"} {
			assert.Contains(t, defs, name)
		}

		transcript := defs["transcript"].(map[string]interface{})
		props := transcript["properties"].(map[string]interface{})
		events := props["events"].(map[string]interface{})
		assert.Equal(t, "array", events["type"])
		items := events["items"].(map[string]interface{})
		assert.Equal(t, "array", items["type"], "events are [delay, text] pairs")
		assert.Equal(t, "number", props["duration"].(map[string]interface{})["type"])
	})

	t.Run("filters by type", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &SchemaCmd{Type: []string{"Converted"}}

		require.NoError(t, cmd.Run(globals))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
		defs := result["definitions"].(map[string]interface{})
		assert.Len(t, defs, 1)
		assert.Contains(t, defs, "converted")
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		globals, _, _ := testGlobals("ndjson")
		cmd := &SchemaCmd{Type: []string{"heartbeat"}}
		assert.Error(t, cmd.Run(globals))
	})
}

// --- Version Command Tests ---

func TestVersionCmd_Run(t *testing.T) {
	t.Run("outputs version in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &VersionCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "ttycast version")
	})

	t.Run("outputs version in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &VersionCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "version", result["type"])
		assert.Contains(t, result, "version")
		assert.Contains(t, result, "commit")
		assert.Equal(t, float64(1), result["asciicast_version"])
	})
}

// --- Logger Tests ---

func TestVerboseLoggingCarriesRunID(t *testing.T) {
	globals, _, stderr := testGlobals("ndjson")
	globals.Verbose = true

	globals.Debug("hello %d", 42)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(stderr.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "hello 42", entry["msg"])
	assert.Equal(t, "test-run", entry["run_id"])
}

func TestQuietLoggingWritesNothing(t *testing.T) {
	globals, stdout, stderr := testGlobals("ndjson")
	globals.Debug("hidden")
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

// --- Watch Command Tests ---

func watchCycles(t *testing.T, out string) []map[string]interface{} {
	t.Helper()
	return linesOfType(ndjsonLines(t, out), "watch_cycle")
}

func TestWatchCmd_Once(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "state.json")

	writeFile(t, dir, "s1.log", sampleCapture(400))
	writeFile(t, dir, "tiny.log", sampleCapture(0))
	writeFile(t, dir, "open.json", logClosedEvent(t, "live", "sensor-1", sampleCapture(400), false))
	writeFile(t, dir, "old.cast", []byte("ignored"))
	writeFile(t, dir, ".hidden", []byte("ignored"))

	cmd := &WatchCmd{Dir: dir, OutputDir: outDir, Encoding: "json", Sensor: "honeypot",
		Workers: 2, MinSize: 300, StateFile: statePath, Once: true}

	globals, stdout, _ := testGlobals("ndjson")
	require.NoError(t, cmd.Run(globals))

	lines := ndjsonLines(t, stdout.String())
	require.Equal(t, "info", lines[0]["type"])

	converted := linesOfType(lines, "converted")
	require.Len(t, converted, 1)
	assert.Equal(t, filepath.Join(outDir, "s1.json"), converted[0]["output"])

	reasons := map[string]string{}
	for _, s := range linesOfType(lines, "skipped") {
		reasons[filepath.Base(s["source"].(string))] = s["reason"].(string)
	}
	assert.Equal(t, map[string]string{"tiny.log": "too_small", "open.json": "session_open"}, reasons)

	cycles := watchCycles(t, stdout.String())
	require.Len(t, cycles, 1)
	assert.Equal(t, float64(3), cycles[0]["scanned"])
	assert.Equal(t, float64(1), cycles[0]["converted"])
	assert.Equal(t, float64(2), cycles[0]["skipped"])

	tr, err := os.ReadFile(filepath.Join(outDir, "s1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(tr), "Cowrie Recording: s1_honeypot")

	st, err := loadWatchState(statePath)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Len(t, st.Converted, 1)

	t.Run("a restarted watch remembers converted captures", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		require.NoError(t, cmd.Run(globals))

		lines := ndjsonLines(t, stdout.String())
		assert.Equal(t, float64(1), lines[0]["restored"])
		assert.Empty(t, linesOfType(lines, "converted"))

		var already int
		for _, s := range linesOfType(lines, "skipped") {
			if s["reason"] == "already_converted" {
				already++
			}
		}
		assert.Equal(t, 1, already)
	})
}

func TestWatcherRechecksRewrittenFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "live.json", logClosedEvent(t, "live", "sensor-1", sampleCapture(400), false))

	globals, stdout, _ := testGlobals("ndjson")
	cmd := &WatchCmd{Dir: dir, Encoding: "yaml", Workers: 1, MinSize: 300,
		StateFile: filepath.Join(t.TempDir(), "state.json")}
	w, err := cmd.newWatcher(globals, asciicast.FormatYAML)
	require.NoError(t, err)

	ctx := context.Background()
	w.cycle(ctx)
	w.cycle(ctx)

	cycles := watchCycles(t, stdout.String())
	require.Len(t, cycles, 2)
	assert.Equal(t, float64(1), cycles[0]["skipped"])
	assert.Equal(t, float64(0), cycles[1]["skipped"], "unchanged files are not re-read")

	// the sensor rewrites the event once the session ends
	require.NoError(t, os.WriteFile(path, logClosedEvent(t, "live", "sensor-1", sampleCapture(400), true), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	stdout.Reset()
	w.cycle(ctx)

	cycles = watchCycles(t, stdout.String())
	require.Len(t, cycles, 1)
	assert.Equal(t, float64(1), cycles[0]["converted"])
	_, err = os.Stat(filepath.Join(dir, "live.yaml"))
	assert.NoError(t, err)
}

func TestWatchDefaultsKeepEventFiles(t *testing.T) {
	dir := t.TempDir()
	event := logClosedEvent(t, "abc123", "sensor-1", sampleCapture(400), true)
	eventPath := writeFile(t, dir, "abc123.json", event)

	cmd := &WatchCmd{Dir: dir, Encoding: "json", Workers: 1, MinSize: 300,
		StateFile: filepath.Join(t.TempDir(), "state.json"), Once: true}

	globals, stdout, _ := testGlobals("ndjson")
	require.NoError(t, cmd.Run(globals))

	kept, err := os.ReadFile(eventPath)
	require.NoError(t, err)
	assert.Equal(t, event, kept, "the sensor event stays untouched")

	out := filepath.Join(dir, "abc123.cast.json")
	converted := linesOfType(ndjsonLines(t, stdout.String()), "converted")
	require.Len(t, converted, 1)
	assert.Equal(t, out, converted[0]["output"])
	assert.True(t, isTranscriptFile(out))

	// the transcript is not read back as a capture
	globals, stdout, _ = testGlobals("ndjson")
	require.NoError(t, cmd.Run(globals))
	lines := ndjsonLines(t, stdout.String())
	assert.Equal(t, float64(1), watchCycles(t, stdout.String())[0]["scanned"])
	for _, s := range linesOfType(lines, "skipped") {
		assert.Equal(t, "already_converted", s["reason"])
		assert.Equal(t, eventPath, s["source"])
	}
}

func TestWatchSkipsItsOwnOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "s1.log", sampleCapture(400))

	globals, stdout, _ := testGlobals("ndjson")
	cmd := &WatchCmd{Dir: dir, Encoding: "json", Sensor: "honeypot",
		Workers: 1, MinSize: 300, StateFile: filepath.Join(t.TempDir(), "state.json")}
	w, err := cmd.newWatcher(globals, asciicast.FormatJSON)
	require.NoError(t, err)
	require.True(t, w.inPlace)

	w.cycle(context.Background())
	w.cycle(context.Background())

	cycles := watchCycles(t, stdout.String())
	require.Len(t, cycles, 2)
	assert.Equal(t, float64(1), cycles[0]["converted"])
	assert.Equal(t, float64(1), cycles[1]["scanned"])
	assert.Empty(t, linesOfType(ndjsonLines(t, stdout.String()), "error"))
}

func TestWatchRefusesToOverwriteForeignFiles(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	writeFile(t, dir, "event.json", logClosedEvent(t, "abc", "sensor-1", sampleCapture(400), true))
	foreign := writeFile(t, outDir, "abc.json", []byte(`{"note":"keep me"}`))

	globals, stdout, _ := testGlobals("ndjson")
	cmd := &WatchCmd{Dir: dir, OutputDir: outDir, Encoding: "json", Workers: 1, MinSize: 300,
		StateFile: filepath.Join(t.TempDir(), "state.json"), Once: true}
	require.NoError(t, cmd.Run(globals))

	data, err := os.ReadFile(foreign)
	require.NoError(t, err)
	assert.Equal(t, `{"note":"keep me"}`, string(data))

	errs := linesOfType(ndjsonLines(t, stdout.String()), "error")
	require.Len(t, errs, 1)
	assert.Equal(t, "WRITE_FAILED", errs[0]["code"])
	assert.Contains(t, errs[0]["message"], "refusing to overwrite")
}

func TestWatchRejectsUnsafeSessionIDs(t *testing.T) {
	for _, session := range []string{"../escaped", "a/b", "..", ".hidden"} {
		t.Run(session, func(t *testing.T) {
			root := t.TempDir()
			dir := filepath.Join(root, "in")
			outDir := filepath.Join(root, "out")
			require.NoError(t, os.MkdirAll(dir, 0o755))
			writeFile(t, dir, "event.json", logClosedEvent(t, session, "sensor-1", sampleCapture(400), true))

			globals, stdout, _ := testGlobals("ndjson")
			cmd := &WatchCmd{Dir: dir, OutputDir: outDir, Encoding: "json", Workers: 1, MinSize: 300,
				StateFile: filepath.Join(root, "state.json"), Once: true}
			require.NoError(t, cmd.Run(globals))

			lines := ndjsonLines(t, stdout.String())
			assert.Empty(t, linesOfType(lines, "converted"))
			errs := linesOfType(lines, "error")
			require.Len(t, errs, 1)
			assert.Equal(t, "INVALID_EVENT", errs[0]["code"])

			_, err := os.Stat(filepath.Join(root, "escaped.json"))
			assert.True(t, os.IsNotExist(err))
			_, err = os.Stat(filepath.Join(outDir, "a"))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestConvertCmd_OutputDirSafety(t *testing.T) {
	t.Run("rejects unsafe session ids", func(t *testing.T) {
		root := t.TempDir()
		capturePath := writeFile(t, root, "s1.log", sampleCapture(0))
		outDir := filepath.Join(root, "out") + string(os.PathSeparator)

		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConvertCmd{File: capturePath, Sensor: "honeypot", Output: outDir, Session: "../x"}

		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), `"code":"INVALID_EVENT"`)
		_, err := os.Stat(filepath.Join(root, "x.json"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("never overwrites its input", func(t *testing.T) {
		dir := t.TempDir()
		event := logClosedEvent(t, "abc", "sensor-1", sampleCapture(0), true)
		eventPath := writeFile(t, dir, "abc.json", event)

		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConvertCmd{File: eventPath, Output: dir}

		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), `"code":"WRITE_FAILED"`)
		kept, err := os.ReadFile(eventPath)
		require.NoError(t, err)
		assert.Equal(t, event, kept)
	})
}

func TestTranscriptName(t *testing.T) {
	name, err := transcriptName("a1b2c3d4e5f6", asciicast.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4e5f6.yaml", name)

	for _, bad := range []string{"", ".", "..", "../x", "a/b", `a\b`, "x..y", "-rf", "with space"} {
		_, err := transcriptName(bad, asciicast.FormatJSON)
		assert.Error(t, err, bad)
	}
}

func TestVerboseWatchSharesStderr(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		writeFile(t, dir, fmt.Sprintf("s%d.log", i), sampleCapture(400+i))
	}

	globals, _, stderr := testGlobals("text")
	globals.Verbose = true
	cmd := &WatchCmd{Dir: dir, OutputDir: t.TempDir(), Encoding: "json", Sensor: "honeypot",
		Workers: 4, MinSize: 300, StateFile: filepath.Join(t.TempDir(), "state.json"), Once: true}
	require.NoError(t, cmd.Run(globals))

	var converted int
	for _, line := range strings.Split(strings.TrimSpace(stderr.String()), "\n") {
		if strings.HasPrefix(line, "{") {
			assert.True(t, json.Valid([]byte(line)), line)
			continue
		}
		if strings.HasPrefix(line, "converted ") {
			converted++
		}
	}
	assert.Equal(t, 8, converted)
}

func TestWatchCmd_RejectsFiles(t *testing.T) {
	file := writeFile(t, t.TempDir(), "s1.log", sampleCapture(0))
	globals, stdout, _ := testGlobals("ndjson")
	cmd := &WatchCmd{Dir: file, Once: true}

	require.Error(t, cmd.Run(globals))
	assert.Contains(t, stdout.String(), "is not a directory")
}

// --- Completion Command Tests ---

func TestCompletionCmd_Run(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish"} {
		t.Run(shell, func(t *testing.T) {
			var c CLI
			parser, err := kong.New(&c, Vars(config.Default()))
			require.NoError(t, err)
			kctx, err := parser.Parse([]string{"completion", shell})
			require.NoError(t, err)

			globals, stdout, _ := testGlobals("text")
			require.NoError(t, c.Completion.Run(globals, kctx))

			script := stdout.String()
			assert.Contains(t, script, "ttycast")
			for _, cmd := range []string{"convert", "inspect", "play", "watch", "upload"} {
				assert.Contains(t, script, cmd)
			}
			assert.Contains(t, script, "asciicast yaml cbor plist")
		})
	}

	t.Run("bash lists subcommand flags", func(t *testing.T) {
		var c CLI
		parser, err := kong.New(&c, Vars(config.Default()))
		require.NoError(t, err)
		kctx, err := parser.Parse([]string{"completion", "bash"})
		require.NoError(t, err)

		idx := indexCommands(kctx.Model.Node)
		assert.Contains(t, idx.Nodes["watch"].Flags, "--state-file")
		assert.True(t, idx.Nodes["convert"].TakesFile)
		assert.Contains(t, idx.Nodes["config"].Subcommands, "generate")
		assert.Equal(t, []string{"ndjson", "text"}, idx.Enums["--format"])
	})
}
