// Package cli implements the ttycast command line.
package cli

import (
	"io"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/vburojevic/ttycast/internal/config"
	"go.uber.org/zap/zapcore"
)

// Build information, set with -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the root command tree
type CLI struct {
	Format  string `short:"f" default:"${config_format}" enum:"ndjson,text" help:"Status output format (ndjson or text)"`
	Quiet   bool   `short:"q" help:"Suppress status lines; errors are still reported"`
	Verbose bool   `short:"v" help:"Write structured debug logs to stderr"`

	Convert    ConvertCmd    `cmd:"" help:"Convert a capture into a transcript"`
	Inspect    InspectCmd    `cmd:"" help:"Trace how every frame of a capture is decoded"`
	Play       PlayCmd       `cmd:"" help:"Replay a transcript or capture in the terminal"`
	Watch      WatchCmd      `cmd:"" help:"Convert new captures in a directory as they appear"`
	Upload     UploadCmd     `cmd:"" help:"Upload a transcript to an asciicast server"`
	Schema     SchemaCmd     `cmd:"" help:"Print JSON Schema for transcripts and status lines"`
	Config     ConfigCmd     `cmd:"" help:"Show or generate configuration"`
	Completion CompletionCmd `cmd:"" help:"Generate a shell completion script"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
}

// Globals is passed to every command's Run
type Globals struct {
	Format  string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
	RunID   string

	logger *runLogger
	stderr zapcore.WriteSyncer
}

// Vars exposes configuration values to kong struct tags. Flags still win.
func Vars(cfg *config.Config) kong.Vars {
	if cfg == nil {
		cfg = config.Default()
	}
	return kong.Vars{
		"config_format":     cfg.Format,
		"config_sensor":     cfg.Defaults.Sensor,
		"config_encoding":   cfg.Defaults.Encoding,
		"config_min_size":   strconv.Itoa(cfg.Defaults.MinSize),
		"config_interval":   cfg.Watch.Interval.String(),
		"config_workers":    strconv.Itoa(cfg.Watch.Workers),
		"config_output_dir": cfg.Watch.OutputDir,
		"config_state_file": cfg.Watch.StateFile,
		"config_speed":      strconv.FormatFloat(cfg.Play.Speed, 'f', -1, 64),
		"config_idle_limit": cfg.Play.IdleLimit.String(),
		"config_upload_url": cfg.Upload.URL,
	}
}

// NewGlobalsWithConfig merges parsed flags with file configuration.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	format := c.Format
	if format == "" {
		format = cfg.Format
	}
	return &Globals{
		Format:  format,
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
		RunID:   uuid.NewString(),
	}
}

// Debug logs through the run logger when --verbose is set.
func (g *Globals) Debug(format string, args ...interface{}) {
	g.log().Debug(format, args...)
}

func (g *Globals) log() *runLogger {
	if g.logger == nil {
		g.logger = newRunLogger(g)
	}
	return g.logger
}

func (g *Globals) config() *config.Config {
	if g.Config == nil {
		g.Config = config.Default()
	}
	return g.Config
}
