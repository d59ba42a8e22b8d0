package render

import (
	"sort"
	"sync"
)

// Snapshot pairs a tracker's ready metadata with its latest update.
// Update is nil until the first tick produces one.
type Snapshot struct {
	Ready  ReadyPayload   `json:"ready"`
	Update *UpdatePayload `json:"update,omitempty"`
}

// Snapshots retains the most recent payloads per pair for read surfaces.
type Snapshots struct {
	mu      sync.RWMutex
	entries map[string]Snapshot
}

// NewSnapshots builds an empty snapshot store.
func NewSnapshots() *Snapshots {
	return &Snapshots{entries: make(map[string]Snapshot)}
}

// Ready records the initialisation payload for a pair.
func (s *Snapshots) Ready(p ReadyPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[p.Pair]
	entry.Ready = p
	s.entries[p.Pair] = entry
}

// Update records the latest tick payload for a pair.
func (s *Snapshots) Update(p UpdatePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[p.Pair]
	entry.Update = &p
	s.entries[p.Pair] = entry
}

// Get returns the snapshot for a pair.
func (s *Snapshots) Get(pair string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[pair]
	return entry, ok
}

// List returns all snapshots sorted by pair.
func (s *Snapshots) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ready.Pair < out[j].Ready.Pair })
	return out
}

// Drop removes a pair's snapshot after its tracker is stopped.
func (s *Snapshots) Drop(pair string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, pair)
}

var _ Renderer = (*Snapshots)(nil)
