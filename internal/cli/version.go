package cli

import (
	"fmt"
	"runtime"

	"github.com/vburojevic/ttycast/internal/asciicast"
	"github.com/vburojevic/ttycast/internal/output"
)

// VersionCmd shows build information and how to upgrade
type VersionCmd struct{}

// VersionOutput represents the NDJSON output for the version command
type VersionOutput struct {
	Type          string   `json:"type"`
	SchemaVersion int      `json:"schemaVersion"`
	Version       string   `json:"version"`
	Commit        string   `json:"commit"`
	GoVersion     string   `json:"go_version"`
	CastVersion   int      `json:"asciicast_version"`
	Encodings     []string `json:"encodings"`
	GoInstall     string   `json:"go_install"`
}

const goInstallCmd = "go install github.com/vburojevic/ttycast/cmd/ttycast@latest"

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	encodings := make([]string, 0, len(asciicast.Formats))
	for _, f := range asciicast.Formats {
		encodings = append(encodings, string(f))
	}

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(VersionOutput{
			Type:          "version",
			SchemaVersion: output.SchemaVersion,
			Version:       Version,
			Commit:        Commit,
			GoVersion:     runtime.Version(),
			CastVersion:   asciicast.Version,
			Encodings:     encodings,
			GoInstall:     goInstallCmd,
		})
	}

	fmt.Fprintf(globals.Stdout, "ttycast version %s (%s)\n", Version, Commit)
	fmt.Fprintf(globals.Stdout, "asciicast v%d; encodings: %v\n", asciicast.Version, encodings)
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "To upgrade:")
	fmt.Fprintf(globals.Stdout, "  %s\n", goInstallCmd)
	return nil
}
