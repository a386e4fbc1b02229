package filter

import (
	"sort"
	"sync"
	"time"
)

// DedupeFilter remembers capture content hashes so that a capture is
// converted once no matter how often it is seen.
type DedupeFilter struct {
	mu     sync.Mutex
	window time.Duration // How long a hash is remembered (0 = forever)
	seen   map[string]*dedupeEntry
}

type dedupeEntry struct {
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// NewDedupeFilter creates a new deduplication filter
func NewDedupeFilter(window time.Duration) *DedupeFilter {
	return &DedupeFilter{
		window: window,
		seen:   make(map[string]*dedupeEntry),
	}
}

// DedupeResult holds the result of a dedupe check
type DedupeResult struct {
	ShouldEmit bool      // Whether this hash is new
	Count      int       // Number of sightings (1 = first occurrence)
	FirstSeen  time.Time // First occurrence timestamp
	LastSeen   time.Time // Last occurrence timestamp
}

// Check records a sighting of hash at now
func (f *DedupeFilter) Check(hash string, now time.Time) DedupeResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.window > 0 {
		f.cleanOldEntries(now)
	}

	if existing, ok := f.seen[hash]; ok {
		existing.count++
		existing.lastSeen = now
		return DedupeResult{
			ShouldEmit: false,
			Count:      existing.count,
			FirstSeen:  existing.firstSeen,
			LastSeen:   existing.lastSeen,
		}
	}

	f.seen[hash] = &dedupeEntry{count: 1, firstSeen: now, lastSeen: now}
	return DedupeResult{ShouldEmit: true, Count: 1, FirstSeen: now, LastSeen: now}
}

// Seen reports whether hash is remembered without recording a sighting
func (f *DedupeFilter) Seen(hash string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[hash]
	return ok
}

// Forget drops hash, e.g. after its conversion failed
func (f *DedupeFilter) Forget(hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, hash)
}

// Restore seeds the filter with a previously persisted hash
func (f *DedupeFilter) Restore(hash string, firstSeen time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[hash]; !ok {
		f.seen[hash] = &dedupeEntry{count: 1, firstSeen: firstSeen, lastSeen: firstSeen}
	}
}

// Snapshot returns remembered hashes with their first sighting, sorted by hash
func (f *DedupeFilter) Snapshot() []SeenHash {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]SeenHash, 0, len(f.seen))
	for hash, entry := range f.seen {
		out = append(out, SeenHash{Hash: hash, FirstSeen: entry.firstSeen})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out
}

// SeenHash is one remembered hash
type SeenHash struct {
	Hash      string
	FirstSeen time.Time
}

// Len returns the number of remembered hashes
func (f *DedupeFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// Reset clears the deduplication state
func (f *DedupeFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = make(map[string]*dedupeEntry)
}

// cleanOldEntries removes entries outside the time window
func (f *DedupeFilter) cleanOldEntries(now time.Time) {
	cutoff := now.Add(-f.window)
	for key, entry := range f.seen {
		if entry.lastSeen.Before(cutoff) {
			delete(f.seen, key)
		}
	}
}
