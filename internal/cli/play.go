package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/vburojevic/ttycast/internal/asciicast"
	"github.com/vburojevic/ttycast/internal/domain"
	"github.com/vburojevic/ttycast/internal/player"
	"github.com/vburojevic/ttycast/internal/tmux"
)

// Overridable in tests.
var (
	tmuxAvailable  = tmux.IsTmuxAvailable
	newTmuxManager = tmux.NewManager
	executablePath = os.Executable
)

// PlayCmd replays a transcript at recorded speed
type PlayCmd struct {
	File      string        `arg:"" help:"Transcript (json or asciicast) or a capture to decode on the fly"`
	Sensor    string        `default:"${config_sensor}" help:"Sensor name for raw captures"`
	Speed     float64       `short:"s" default:"${config_speed}" help:"Playback speed factor (2 plays twice as fast)"`
	IdleLimit time.Duration `short:"i" default:"${config_idle_limit}" help:"Cap pauses longer than this (0 keeps them)"`
	Tmux      bool          `help:"Replay inside a detached tmux session and print the attach command"`
	Session   string        `help:"Custom tmux session name (default: ttycast-<file>)"`
	Banner    bool          `hidden:"" help:"Print a title banner before replaying"`
}

// Run executes the play command
func (c *PlayCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, false, c.Tmux); err != nil {
		return err
	}

	t, err := loadTranscript(globals, c.File, c.Sensor)
	if err != nil {
		return err
	}

	if c.Tmux {
		return c.runInTmux(globals, t)
	}

	p, err := player.New(globals.Stdout, player.Options{Speed: c.Speed, IdleLimit: c.IdleLimit})
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FLAGS", err.Error(), "--speed must be a positive number")
	}
	if !isTerminal(globals.Stdout) {
		globals.Debug("stdout is not a terminal, replaying raw bytes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Banner {
		for _, line := range tmux.Banner(t.Title, float64(t.Duration), time.Now()) {
			fmt.Fprint(globals.Stdout, line+"\r\n")
		}
	}

	stats, err := p.Play(ctx, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		return outputErrorCommon(globals, "WRITE_FAILED", err.Error())
	}
	globals.Debug("replayed %d events, %d bytes, waited %s", stats.Events, stats.Bytes, stats.Waited)

	// the replay owns stdout; only text mode reports on stderr
	if globals.Format == "text" && !globals.Quiet {
		fmt.Fprintf(globals.Stderr, "\nReplayed %d events (%s)\n", stats.Events, t.Title)
	}
	return nil
}

// runInTmux starts `ttycast play` for the same file in a detached session.
func (c *PlayCmd) runInTmux(globals *Globals, t *asciicast.Transcript) error {
	if !tmuxAvailable() {
		return outputErrorCommon(globals, "TMUX_UNAVAILABLE", tmux.ErrTmuxUnavailable.Error(), "install tmux or drop --tmux")
	}

	exe, err := executablePath()
	if err != nil {
		return outputErrorCommon(globals, "TMUX_UNAVAILABLE", fmt.Sprintf("cannot locate ttycast binary: %s", err))
	}
	file, err := filepath.Abs(c.File)
	if err != nil {
		file = c.File
	}

	name := c.Session
	if name == "" {
		name = tmux.GenerateSessionName(sessionBase(file))
	}
	mgr, err := newTmuxManager(&tmux.Config{SessionName: name, Width: t.Width, Height: t.Height})
	if err != nil {
		return outputErrorCommon(globals, "TMUX_UNAVAILABLE", err.Error())
	}

	argv := []string{exe, "play", file, "--banner",
		"--speed", strconv.FormatFloat(c.Speed, 'f', -1, 64),
		"--idle-limit", c.IdleLimit.String(),
	}
	if c.Sensor != "" {
		argv = append(argv, "--sensor", c.Sensor)
	}
	if err := mgr.Start(argv); err != nil {
		return outputErrorCommon(globals, "TMUX_UNAVAILABLE", err.Error())
	}
	if err := mgr.SetTitle(t.Title); err != nil {
		globals.Debug("failed to set tmux window title: %v", err)
	}

	return newEmitter(globals).Emit(domain.NewTmuxSession(mgr.SessionName(), mgr.AttachCommand()))
}

func sessionBase(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
