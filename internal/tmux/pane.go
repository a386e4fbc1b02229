package tmux

import (
	"fmt"
	"strings"
	"time"
)

// SetTitle names the window after the transcript being replayed
func (m *Manager) SetTitle(title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNoPaneAvailable
	}
	_, err := m.tmux.Command("rename-window", "-t", m.config.SessionName+":0", title)
	return err
}

// Banner renders the header a replay prints before its first event
func Banner(title string, duration float64, at time.Time) []string {
	rule := strings.Repeat("═", 60)
	return []string{
		rule,
		"  " + title,
		fmt.Sprintf("  Duration: %.1fs | Started: %s", duration, at.Format("2006-01-02 15:04:05")),
		rule,
	}
}

// escapeTmuxString escapes single quotes for a single-quoted shell word
func escapeTmuxString(s string) string {
	return strings.ReplaceAll(s, "'", `'"'"'`)
}
