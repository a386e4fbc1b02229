package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vburojevic/ttycast/internal/config"
	"github.com/vburojevic/ttycast/internal/filter"
)

// watchState persists the content hashes watch has already converted.
type watchState struct {
	Type          string         `json:"type"` // "watch_state"
	SchemaVersion int            `json:"schemaVersion"`
	Dir           string         `json:"dir,omitempty"`
	Converted     []watchedEntry `json:"converted"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
}

type watchedEntry struct {
	Hash      string `json:"hash"`
	FirstSeen string `json:"first_seen,omitempty"`
}

func defaultWatchStatePath() (string, error) {
	path, err := config.DefaultStateFile()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func loadWatchState(path string) (*watchState, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("watch state path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var st watchState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func saveWatchState(path string, st *watchState) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("watch state path is required")
	}
	if st == nil {
		return errors.New("watch state is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// snapshotWatchState captures everything the dedupe filter remembers.
func snapshotWatchState(dir string, seen *filter.DedupeFilter, now time.Time) *watchState {
	st := &watchState{
		Type:          "watch_state",
		SchemaVersion: 1,
		Dir:           dir,
		Converted:     []watchedEntry{},
		UpdatedAt:     now.UTC().Format(time.RFC3339Nano),
	}
	for _, h := range seen.Snapshot() {
		st.Converted = append(st.Converted, watchedEntry{
			Hash:      h.Hash,
			FirstSeen: h.FirstSeen.UTC().Format(time.RFC3339Nano),
		})
	}
	return st
}

// restore seeds seen with the persisted hashes. Entries with an unreadable
// timestamp are still restored.
func (st *watchState) restore(seen *filter.DedupeFilter) int {
	if st == nil {
		return 0
	}
	n := 0
	for _, e := range st.Converted {
		if e.Hash == "" {
			continue
		}
		first, err := parseRFC3339Any(e.FirstSeen)
		if err != nil {
			first = time.Time{}
		}
		seen.Restore(e.Hash, first)
		n++
	}
	return n
}

func parseRFC3339Any(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	// Try nano first (what we emit), fall back to second precision.
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
