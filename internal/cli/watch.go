package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sourcegraph/conc/pool"
	"github.com/vburojevic/ttycast/internal/asciicast"
	"github.com/vburojevic/ttycast/internal/domain"
	"github.com/vburojevic/ttycast/internal/filter"
	"github.com/vburojevic/ttycast/internal/ingest"
	"github.com/vburojevic/ttycast/internal/output"
	"github.com/vburojevic/ttycast/internal/ttylog"
	"github.com/vburojevic/ttycast/internal/upload"
)

// watchClock drives the scan interval; tests swap in a mock.
var watchClock clock.Clock = clock.New()

// WatchCmd converts captures dropped into a directory
type WatchCmd struct {
	Dir       string        `arg:"" help:"Directory holding raw captures or log-closed events"`
	OutputDir string        `short:"o" default:"${config_output_dir}" help:"Where transcripts are written (default: DIR)"`
	Encoding  string        `short:"e" default:"${config_encoding}" help:"Transcript encoding: json, asciicast, yaml, cbor, plist"`
	Sensor    string        `default:"${config_sensor}" help:"Sensor name for raw captures"`
	Interval  time.Duration `default:"${config_interval}" help:"Time between directory scans"`
	Workers   int           `default:"${config_workers}" help:"Concurrent conversions"`
	MinSize   int           `default:"${config_min_size}" help:"Skip captures of at most this many bytes"`
	StateFile string        `default:"${config_state_file}" help:"Where converted hashes are remembered (default: ~/.ttycast/watch-state.json)"`
	Once      bool          `help:"Scan once and exit"`
	Upload    bool          `help:"Upload every converted transcript (see upload.* config)"`
}

// Run executes the watch command
func (c *WatchCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, false, false); err != nil {
		return err
	}
	format, err := parseEncoding(globals, c.Encoding)
	if err != nil {
		return err
	}
	if c.Interval <= 0 && !c.Once {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--interval must be positive", "use e.g. --interval 10s or --once")
	}

	info, err := os.Stat(c.Dir)
	if err != nil {
		return outputErrorCommon(globals, "READ_FAILED", err.Error())
	}
	if !info.IsDir() {
		return outputErrorCommon(globals, "READ_FAILED", fmt.Sprintf("%s is not a directory", c.Dir))
	}

	w, err := c.newWatcher(globals, format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !globals.Quiet {
		if globals.Format == "ndjson" {
			output.NewNDJSONWriter(globals.Stdout).Write(map[string]any{
				"type":          "info",
				"schemaVersion": output.SchemaVersion,
				"run_id":        globals.RunID,
				"message":       "watching " + c.Dir,
				"output_dir":    w.outDir,
				"state_file":    w.statePath,
				"restored":      w.seen.Len(),
			})
		} else {
			fmt.Fprintf(globals.Stderr, "Watching %s (output: %s, every %s)\n", c.Dir, w.outDir, c.Interval)
			fmt.Fprintln(globals.Stderr, "Press Ctrl+C to stop")
		}
	}

	w.cycle(ctx)
	if c.Once {
		return w.err
	}

	ticker := watchClock.Ticker(c.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.cycle(ctx)
			if w.err != nil {
				return w.err
			}
		}
	}
}

// watcher holds state shared by the scan cycles of one run.
type watcher struct {
	globals   *Globals
	emitter   *output.Emitter
	logger    *runLogger
	dir       string
	outDir    string
	format    asciicast.Format
	sensor    string
	minSize   int
	workers   int
	statePath string
	seen      *filter.DedupeFilter
	uploader  upload.Uploader

	cycles int
	err    error

	// inPlace is set when transcripts land in the watched directory
	inPlace bool

	mu sync.Mutex
	// skipped remembers files that were skipped unchanged, by modification time
	skipped map[string]time.Time
	// written holds the absolute paths of transcripts this run produced
	written map[string]bool
}

func (c *WatchCmd) newWatcher(globals *Globals, format asciicast.Format) (*watcher, error) {
	w := &watcher{
		globals: globals,
		emitter: newEmitter(globals),
		logger:  globals.log().With("dir", c.Dir),
		dir:     c.Dir,
		outDir:  c.OutputDir,
		format:  format,
		sensor:  c.Sensor,
		minSize: c.MinSize,
		workers: c.Workers,
		seen:    filter.NewDedupeFilter(0),
		skipped: make(map[string]time.Time),
		written: make(map[string]bool),
	}
	if w.outDir == "" {
		w.outDir = c.Dir
	}
	w.inPlace = samePath(w.outDir, w.dir)
	if w.workers <= 0 {
		w.workers = 1
	}

	w.statePath = c.StateFile
	if w.statePath == "" {
		path, err := defaultWatchStatePath()
		if err != nil {
			return nil, outputErrorCommon(globals, "WATCH_FAILED", fmt.Sprintf("cannot locate state file: %s", err), "pass --state-file")
		}
		w.statePath = path
	}
	st, err := loadWatchState(w.statePath)
	if err != nil {
		return nil, outputErrorCommon(globals, "WATCH_FAILED", fmt.Sprintf("cannot read state file %s: %s", w.statePath, err), "delete it to start over")
	}
	w.logger.Debug("restored %d converted hashes from %s", st.restore(w.seen), w.statePath)

	if c.Upload {
		cfg := globals.config()
		u, err := newUploader(cfg.Upload.URL, cfg.Upload.Username, cfg.Upload.Token)
		if err != nil {
			return nil, outputErrorCommon(globals, "INVALID_FLAGS", err.Error(), "check upload.url")
		}
		w.uploader = u
	}
	return w, nil
}

type outcome int

const (
	outcomeConverted outcome = iota
	outcomeSkipped
	outcomeFailed
)

// outputExtensions are never picked up as captures.
var outputExtensions = map[string]bool{".cast": true, ".yaml": true, ".cbor": true, ".plist": true, ".tmp": true}

// inPlaceJSONSuffix names JSON transcripts written next to the captures, so
// they cannot collide with <session>.json sensor events.
const inPlaceJSONSuffix = ".cast.json"

// isOutputName reports whether a file name is reserved for transcripts.
func isOutputName(name string) bool {
	lower := strings.ToLower(name)
	return outputExtensions[filepath.Ext(lower)] || strings.HasSuffix(lower, inPlaceJSONSuffix)
}

// candidates lists capture files in the watched directory, oldest name first.
func (w *watcher) candidates() ([]os.DirEntry, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if isOutputName(e.Name()) || w.wrote(filepath.Join(w.dir, e.Name())) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// cycle scans the directory once and converts what is new.
func (w *watcher) cycle(ctx context.Context) {
	w.cycles++
	ev := domain.NewWatchCycle(w.globals.RunID, w.cycles, watchClock.Now())

	entries, err := w.candidates()
	if err != nil {
		w.err = outputErrorCommon(w.globals, "WATCH_FAILED", err.Error())
		return
	}
	ev.Scanned = len(entries)

	counts := make(map[outcome]int)
	p := pool.New().WithMaxGoroutines(w.workers)
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(w.dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		if w.unchangedSkip(path, info.ModTime()) {
			continue
		}
		p.Go(func() {
			o := w.process(ctx, path, info.ModTime())
			w.mu.Lock()
			counts[o]++
			w.mu.Unlock()
		})
	}
	p.Wait()

	ev.Converted = counts[outcomeConverted]
	ev.Skipped = counts[outcomeSkipped]
	ev.Errors = counts[outcomeFailed]

	if ev.Converted > 0 {
		if err := saveWatchState(w.statePath, snapshotWatchState(w.dir, w.seen, watchClock.Now())); err != nil {
			w.emitter.Error(w.statePath, "WRITE_FAILED", fmt.Sprintf("cannot save state: %s", err))
		}
	}
	w.logger.Debug("cycle %d done: %d scanned, %d converted", ev.Cycle, ev.Scanned, ev.Converted)
	w.emitter.Emit(ev)
}

func (w *watcher) unchangedSkip(path string, mod time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, ok := w.skipped[path]
	return ok && prev.Equal(mod)
}

func (w *watcher) rememberSkip(path string, mod time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.skipped[path] = mod
}

func (w *watcher) wrote(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written[absPath(path)]
}

func (w *watcher) rememberOutput(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written[absPath(path)] = true
}

// outputPath names the transcript of a session inside the output directory.
func (w *watcher) outputPath(session string) (string, error) {
	name, err := transcriptName(session, w.format)
	if err != nil {
		return "", err
	}
	if w.inPlace && w.format == asciicast.FormatJSON {
		name = session + inPlaceJSONSuffix
	}
	return filepath.Join(w.outDir, name), nil
}

// overwritable reports whether out may be replaced: it is missing, was written
// by this run, carries a transcript-only name, or already holds a transcript.
func (w *watcher) overwritable(out string) bool {
	if _, err := os.Lstat(out); errors.Is(err, os.ErrNotExist) {
		return true
	}
	if w.wrote(out) || isOutputName(filepath.Base(out)) {
		return true
	}
	return isTranscriptFile(out)
}

// process converts one file. Captures that are too small, still open, or
// already converted are skipped.
func (w *watcher) process(ctx context.Context, path string, mod time.Time) outcome {
	log := w.logger.With("source", path)

	capture, err := ingest.ReadFile(path, w.sensor)
	if err != nil {
		if errors.Is(err, ingest.ErrNoCapture) {
			w.rememberSkip(path, mod)
			w.emitter.Emit(domain.NewSkipped(path, "", "no_capture", 0))
			return outcomeSkipped
		}
		w.rememberSkip(path, mod)
		w.emitter.Error(path, "INVALID_EVENT", err.Error())
		return outcomeFailed
	}

	if ok, reason := capture.Eligible(w.minSize); !ok {
		w.rememberSkip(path, mod)
		w.emitter.Emit(skippedEvent(w.globals, capture, reason))
		return outcomeSkipped
	}

	if res := w.seen.Check(capture.Hash, watchClock.Now()); !res.ShouldEmit {
		w.rememberSkip(path, mod)
		w.emitter.Emit(skippedEvent(w.globals, capture, "already_converted"))
		return outcomeSkipped
	}

	t, stats, err := w.decode(capture)
	if err != nil {
		w.seen.Forget(capture.Hash)
		w.rememberSkip(path, mod)
		w.emitter.Error(path, "MISSING_METADATA", err.Error(), missingMetadataHint)
		return outcomeFailed
	}

	out, err := w.outputPath(capture.Session)
	if err != nil {
		w.seen.Forget(capture.Hash)
		w.rememberSkip(path, mod)
		w.emitter.Error(path, "INVALID_EVENT", err.Error())
		return outcomeFailed
	}
	if !w.overwritable(out) {
		w.seen.Forget(capture.Hash)
		w.rememberSkip(path, mod)
		w.emitter.Error(path, "WRITE_FAILED", fmt.Sprintf("refusing to overwrite %s: not a transcript", out), "use --output-dir")
		return outcomeFailed
	}
	if err := writeCastFile(out, t, w.format); err != nil {
		w.seen.Forget(capture.Hash)
		w.emitter.Error(path, "WRITE_FAILED", err.Error())
		return outcomeFailed
	}
	w.rememberOutput(out)
	w.rememberSkip(path, mod)
	log.Debug("wrote %s (%d events)", out, len(t.Events))
	w.emitter.Emit(convertedEvent(w.globals, capture, out, w.format, t, stats))

	if w.uploader != nil {
		w.upload(ctx, path, t)
	}
	return outcomeConverted
}

// decode reports failures through the caller; a watch run keeps going.
func (w *watcher) decode(capture *ingest.Capture) (*asciicast.Transcript, ttylog.Stats, error) {
	var d ttylog.Decoder
	return d.Decode(capture.Data, capture.Session, capture.Sensor)
}

func (w *watcher) upload(ctx context.Context, source string, t *asciicast.Transcript) {
	doc, err := asciicast.Marshal(t, asciicast.FormatAsciicast)
	if err != nil {
		w.emitter.Error(source, "ENCODE_FAILED", err.Error())
		return
	}
	reply, err := w.uploader.Upload(ctx, doc)
	if err != nil {
		w.emitter.Error(source, "UPLOAD_FAILED", err.Error())
		return
	}
	w.emitter.Emit(domain.NewUploaded(source, reply))
}

func skippedEvent(globals *Globals, capture *ingest.Capture, reason string) *domain.Skipped {
	ev := domain.NewSkipped(capture.Source, capture.Hash, reason, len(capture.Data))
	ev.RunID = globals.RunID
	return ev
}
