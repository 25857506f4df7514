// Package neighbor implements the live neighbor table (spec §4.C): the
// set of directly reachable nodes, admitted only after a reachability
// probe (never on beacon receipt alone) and evicted once idle past the
// configured timeout.
package neighbor

import (
	"sync"
	"time"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
)

// Table is the neighbor table. Its lock guards only map bookkeeping --
// no I/O ever happens while it is held, per spec §5.
type Table struct {
	mu      sync.Mutex
	peers   map[string]meshtypes.PeerInfo
	timeout time.Duration
	now     func() time.Time
}

// New returns an empty table that evicts entries idle longer than timeout.
func New(timeout time.Duration) *Table {
	return &Table{
		peers:   make(map[string]meshtypes.PeerInfo),
		timeout: timeout,
		now:     time.Now,
	}
}

// Insert admits or refreshes a neighbor. Callers must have already passed
// the reachability probe (spec §4.C) before calling Insert.
func (t *Table) Insert(info meshtypes.PeerInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info.LastSeen = float64(t.now().Unix())
	t.peers[info.Address.NodeID] = info
}

// Touch refreshes the last-seen timestamp for an already-known neighbor
// without altering its other fields. Reports false if nodeID is unknown.
func (t *Table) Touch(nodeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[nodeID]
	if !ok {
		return false
	}
	p.LastSeen = float64(t.now().Unix())
	t.peers[nodeID] = p
	return true
}

// Remove evicts nodeID unconditionally.
func (t *Table) Remove(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, nodeID)
}

// Has reports whether nodeID is currently a live neighbor.
func (t *Table) Has(nodeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.peers[nodeID]
	return ok
}

// Get returns the stored PeerInfo for nodeID.
func (t *Table) Get(nodeID string) (meshtypes.PeerInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[nodeID]
	return p, ok
}

// PruneStale evicts every neighbor whose last-seen timestamp exceeds the
// configured timeout and returns the evicted node IDs, so callers can log
// or re-probe outside the lock.
func (t *Table) PruneStale() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := float64(t.now().Add(-t.timeout).Unix())
	var evicted []string
	for id, p := range t.peers {
		if p.LastSeen < cutoff {
			delete(t.peers, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Snapshot returns a copy of the current neighbor list, safe to range over
// after the lock is released.
func (t *Table) Snapshot() []meshtypes.PeerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]meshtypes.PeerInfo, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// Len reports the current neighbor count.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.peers)
}
