package cli

import (
	"fmt"

	"github.com/vburojevic/ttycast/internal/config"
	"github.com/vburojevic/ttycast/internal/output"
)

// ConfigCmd groups configuration subcommands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which configuration file is loaded"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample configuration file"`
}

// ConfigShowCmd prints the merged configuration
type ConfigShowCmd struct{}

type configOutput struct {
	Type          string         `json:"type"` // "config"
	SchemaVersion int            `json:"schemaVersion"`
	File          string         `json:"file,omitempty"`
	Format        string         `json:"format"`
	Quiet         bool           `json:"quiet"`
	Verbose       bool           `json:"verbose"`
	Defaults      map[string]any `json:"defaults"`
	Watch         map[string]any `json:"watch"`
	Play          map[string]any `json:"play"`
	Upload        map[string]any `json:"upload"`
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.config()
	file := config.ConfigFile()

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(configOutput{
			Type:          "config",
			SchemaVersion: output.SchemaVersion,
			File:          file,
			Format:        cfg.Format,
			Quiet:         cfg.Quiet,
			Verbose:       cfg.Verbose,
			Defaults: map[string]any{
				"sensor":   cfg.Defaults.Sensor,
				"encoding": cfg.Defaults.Encoding,
				"min_size": cfg.Defaults.MinSize,
			},
			Watch: map[string]any{
				"interval":   cfg.Watch.Interval.String(),
				"workers":    cfg.Watch.Workers,
				"output_dir": cfg.Watch.OutputDir,
				"state_file": cfg.Watch.StateFile,
			},
			Play: map[string]any{
				"speed":      cfg.Play.Speed,
				"idle_limit": cfg.Play.IdleLimit.String(),
			},
			Upload: map[string]any{
				"url":      cfg.Upload.URL,
				"username": cfg.Upload.Username,
				"token":    redact(cfg.Upload.Token),
			},
		})
	}

	w := globals.Stdout
	fmt.Fprintln(w, "Current Configuration:")
	if file != "" {
		fmt.Fprintf(w, "  (loaded from %s)\n", file)
	}
	fmt.Fprintf(w, "  format: %s\n", cfg.Format)
	fmt.Fprintf(w, "  quiet: %v\n", cfg.Quiet)
	fmt.Fprintf(w, "  verbose: %v\n", cfg.Verbose)
	fmt.Fprintln(w, "Defaults:")
	fmt.Fprintf(w, "  sensor: %s\n", cfg.Defaults.Sensor)
	fmt.Fprintf(w, "  encoding: %s\n", cfg.Defaults.Encoding)
	fmt.Fprintf(w, "  min_size: %d\n", cfg.Defaults.MinSize)
	fmt.Fprintln(w, "Watch:")
	fmt.Fprintf(w, "  interval: %s\n", cfg.Watch.Interval)
	fmt.Fprintf(w, "  workers: %d\n", cfg.Watch.Workers)
	fmt.Fprintf(w, "  output_dir: %s\n", cfg.Watch.OutputDir)
	fmt.Fprintf(w, "  state_file: %s\n", cfg.Watch.StateFile)
	fmt.Fprintln(w, "Play:")
	fmt.Fprintf(w, "  speed: %g\n", cfg.Play.Speed)
	fmt.Fprintf(w, "  idle_limit: %s\n", cfg.Play.IdleLimit)
	fmt.Fprintln(w, "Upload:")
	fmt.Fprintf(w, "  url: %s\n", cfg.Upload.URL)
	fmt.Fprintf(w, "  username: %s\n", cfg.Upload.Username)
	fmt.Fprintf(w, "  token: %s\n", redact(cfg.Upload.Token))
	return nil
}

// ConfigPathCmd prints the config file in use
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(map[string]any{
			"type":          "config_path",
			"schemaVersion": output.SchemaVersion,
			"path":          path,
		})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout, "Searched for ttycast.yaml, .ttycast.yaml and .ttycastrc in /etc/ttycast, the user config dir, $HOME and the current directory")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints a commented sample configuration
type ConfigGenerateCmd struct{}

const sampleConfig = `# ttycast configuration file
# Save as ~/.ttycast.yaml or ~/.config/ttycast/ttycast.yaml

# Status output format: ndjson or text
format: ndjson
quiet: false
verbose: false

defaults:
  # Sensor name used for raw captures that carry no metadata
  sensor: ""
  # Transcript encoding: json, asciicast, yaml, cbor or plist
  encoding: json
  # Captures at or below this many bytes are skipped by watch
  min_size: 300

watch:
  interval: 10s
  workers: 4
  output_dir: ""
  # Defaults to ~/.ttycast/watch-state.json
  state_file: ""

play:
  speed: 1.0
  # Cap long pauses, e.g. 2s
  idle_limit: 0s

upload:
  url: https://asciinema.org/api/asciicasts
  username: ""
  # Prefer TTYCAST_UPLOAD_TOKEN in the environment
  token: ""
`

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	_, err := fmt.Fprint(globals.Stdout, sampleConfig)
	return err
}
