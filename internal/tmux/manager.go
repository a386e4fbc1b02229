// Package tmux launches transcript replays inside detached tmux sessions.
package tmux

import (
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/GianlucaP106/gotmux/gotmux"
)

var (
	// ErrTmuxUnavailable is returned when no tmux binary is on PATH
	ErrTmuxUnavailable = errors.New("tmux is not installed or not in PATH")
	// ErrNoPaneAvailable is returned when the session has not been started
	ErrNoPaneAvailable = errors.New("tmux session has not been started")
)

// Runner executes raw tmux commands. *gotmux.Tmux satisfies it.
type Runner interface {
	Command(req ...string) (string, error)
}

// Config describes the session to create
type Config struct {
	SessionName string
	Width       int
	Height      int
}

// Manager owns one detached tmux session
type Manager struct {
	mu      sync.Mutex
	tmux    Runner
	config  *Config
	started bool
}

// IsTmuxAvailable reports whether tmux can be executed
func IsTmuxAvailable() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// NewManager connects to the default tmux server
func NewManager(cfg *Config) (*Manager, error) {
	if !IsTmuxAvailable() {
		return nil, ErrTmuxUnavailable
	}
	t, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tmux: %w", err)
	}
	return NewManagerWithRunner(cfg, t), nil
}

// NewManagerWithRunner builds a Manager on an arbitrary Runner
func NewManagerWithRunner(cfg *Config, r Runner) *Manager {
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	if cfg.Height <= 0 {
		cfg.Height = 24
	}
	return &Manager{tmux: r, config: cfg}
}

var unsafeSessionChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// GenerateSessionName derives a tmux-safe session name from a transcript name
func GenerateSessionName(name string) string {
	name = unsafeSessionChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		return "ttycast"
	}
	return "ttycast-" + name
}

// SessionName returns the configured session name
func (m *Manager) SessionName() string {
	return m.config.SessionName
}

// HasSession reports whether the session exists on the server
func (m *Manager) HasSession() bool {
	_, err := m.tmux.Command("has-session", "-t", m.config.SessionName)
	return err == nil
}

// Start creates the detached session running argv. An existing session with
// the same name is replaced.
func (m *Manager) Start(argv []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(argv) == 0 {
		return errors.New("no command to run in tmux")
	}

	if _, err := m.tmux.Command("has-session", "-t", m.config.SessionName); err == nil {
		if _, err := m.tmux.Command("kill-session", "-t", m.config.SessionName); err != nil {
			return fmt.Errorf("failed to replace session %s: %w", m.config.SessionName, err)
		}
	}

	_, err := m.tmux.Command(
		"new-session", "-d",
		"-s", m.config.SessionName,
		"-x", strconv.Itoa(m.config.Width),
		"-y", strconv.Itoa(m.config.Height),
		ShellJoin(argv),
	)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", m.config.SessionName, err)
	}
	m.started = true
	return nil
}

// AttachCommand returns the command a user runs to watch the session
func (m *Manager) AttachCommand() string {
	return "tmux attach -t " + m.config.SessionName
}

// Cleanup kills the session if this manager started it
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false
	_, err := m.tmux.Command("kill-session", "-t", m.config.SessionName)
	return err
}

// ShellJoin quotes argv for the shell tmux runs the session command in
func ShellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

func shellQuote(s string) string {
	if s != "" && shellSafe.MatchString(s) {
		return s
	}
	return "'" + escapeTmuxString(s) + "'"
}
