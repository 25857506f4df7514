package neighbor

import (
	"testing"
	"time"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
)

func TestInsertAndHas(t *testing.T) {
	tbl := New(time.Minute)
	tbl.Insert(meshtypes.PeerInfo{Address: meshtypes.Address{NodeID: "n1"}})
	if !tbl.Has("n1") {
		t.Error("expected n1 to be present after Insert")
	}
	if tbl.Has("n2") {
		t.Error("expected n2 to be absent")
	}
}

func TestTouchUnknownReturnsFalse(t *testing.T) {
	tbl := New(time.Minute)
	if tbl.Touch("ghost") {
		t.Error("expected Touch on unknown neighbor to return false")
	}
}

func TestPruneStaleEvictsOnlyExpired(t *testing.T) {
	now := time.Now()
	tbl := New(10 * time.Second)
	tbl.now = func() time.Time { return now }

	tbl.Insert(meshtypes.PeerInfo{Address: meshtypes.Address{NodeID: "fresh"}})
	tbl.Insert(meshtypes.PeerInfo{Address: meshtypes.Address{NodeID: "stale"}})

	// advance the clock past the timeout, but only "touch" the fresh one
	tbl.now = func() time.Time { return now.Add(15 * time.Second) }
	tbl.Touch("fresh")

	tbl.now = func() time.Time { return now.Add(20 * time.Second) }
	evicted := tbl.PruneStale()

	if len(evicted) != 1 || evicted[0] != "stale" {
		t.Errorf("expected only 'stale' evicted, got %v", evicted)
	}
	if !tbl.Has("fresh") {
		t.Error("expected 'fresh' to survive prune")
	}
	if tbl.Has("stale") {
		t.Error("expected 'stale' to be evicted")
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	tbl := New(time.Minute)
	tbl.Insert(meshtypes.PeerInfo{Address: meshtypes.Address{NodeID: "n1"}})
	snap := tbl.Snapshot()
	tbl.Remove("n1")
	if len(snap) != 1 {
		t.Errorf("expected snapshot taken before Remove to retain n1, got %v", snap)
	}
}
