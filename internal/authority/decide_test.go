package authority

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
)

func TestDecideSequenceMismatch(t *testing.T) {
	store := NewMemoryStore()
	order := meshtypes.TransferOrder{Sender: "alice", SequenceNumber: 5, TTLSeconds: 60, Timestamp: float64(time.Now().Unix())}
	ok, reason := store.Decide(order, time.Now())
	if ok {
		t.Fatal("expected rejection for sequence mismatch (account starts at seq 0)")
	}
	if reason != meshtypes.ReasonSequenceMismatch {
		t.Errorf("expected ReasonSequenceMismatch, got %s", reason)
	}
}

func TestDecideLockExpired(t *testing.T) {
	store := NewMemoryStore()
	issued := time.Now().Add(-2 * time.Minute)
	order := meshtypes.TransferOrder{Sender: "alice", SequenceNumber: 0, TTLSeconds: 30, Timestamp: float64(issued.Unix())}
	ok, reason := store.Decide(order, time.Now())
	if ok {
		t.Fatal("expected rejection for expired lock")
	}
	if reason != meshtypes.ReasonLockExpired {
		t.Errorf("expected ReasonLockExpired, got %s", reason)
	}
}

func TestDecideInsufficientFunds(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	order := meshtypes.TransferOrder{
		Sender: "alice", SequenceNumber: 0, TTLSeconds: 60,
		Timestamp: float64(now.Unix()), Amount: 100, TokenAddress: "tok",
	}
	ok, reason := store.Decide(order, now)
	if ok {
		t.Fatal("expected rejection for insufficient funds")
	}
	if reason != meshtypes.ReasonInsufficientFunds {
		t.Errorf("expected ReasonInsufficientFunds, got %s", reason)
	}
}

func TestDecideAcceptsFundedOrder(t *testing.T) {
	store := NewMemoryStore()
	store.Credit("alice", "tok", 1000)
	now := time.Now()
	order := meshtypes.TransferOrder{
		Sender: "alice", SequenceNumber: 0, TTLSeconds: 60,
		Timestamp: float64(now.Unix()), Amount: 100, TokenAddress: "tok",
	}
	ok, reason := store.Decide(order, now)
	if !ok {
		t.Fatalf("expected acceptance, got rejection reason %s", reason)
	}
}

func TestDecideConflictingLock(t *testing.T) {
	store := NewMemoryStore()
	store.Credit("alice", "tok", 1000)
	now := time.Now()
	orderA := meshtypes.TransferOrder{
		Sender: "alice", Recipient: "bob", SequenceNumber: 0, TTLSeconds: 60,
		Timestamp: float64(now.Unix()), Amount: 100, TokenAddress: "tok",
	}
	orderB := orderA
	orderB.Recipient = "carol" // different content at the same sequence number

	if ok, _ := store.Decide(orderA, now); !ok {
		t.Fatal("expected orderA to be accepted and lock the account")
	}
	ok, reason := store.Decide(orderB, now)
	if ok {
		t.Fatal("expected orderB to conflict with the pending lock from orderA")
	}
	if reason != meshtypes.ReasonConflictingLock {
		t.Errorf("expected ReasonConflictingLock, got %s", reason)
	}
}

func TestDecideIdempotentForSameContent(t *testing.T) {
	store := NewMemoryStore()
	store.Credit("alice", "tok", 1000)
	now := time.Now()
	order := meshtypes.TransferOrder{
		Sender: "alice", Recipient: "bob", SequenceNumber: 0, TTLSeconds: 60,
		Timestamp: float64(now.Unix()), Amount: 100, TokenAddress: "tok",
	}
	if ok, _ := store.Decide(order, now); !ok {
		t.Fatal("expected first decide to accept")
	}
	ok, _ := store.Decide(order, now)
	if !ok {
		t.Fatal("expected re-presenting the identical order to still be accepted (idempotent vote)")
	}
}

func TestRecordVoteOnlyAppendsLedgerLeavesLockAndSequence(t *testing.T) {
	store := NewMemoryStore()
	store.Credit("alice", "tok", 1000)
	now := time.Now()
	order := meshtypes.TransferOrder{
		Sender: "alice", SequenceNumber: 0, TTLSeconds: 60,
		Timestamp: float64(now.Unix()), Amount: 100, TokenAddress: "tok",
	}
	store.Decide(order, now)
	store.RecordVote(order)

	account := store.Get("alice")
	if account.SequenceNumber != 0 {
		t.Errorf("expected sequence number to stay 0 after a single vote (not quorum), got %d", account.SequenceNumber)
	}
	if account.PendingConfirmation == nil {
		t.Error("expected the pending lock from Decide to survive RecordVote")
	}
	if len(account.SignedOrders) != 1 {
		t.Errorf("expected 1 signed order recorded, got %d", len(account.SignedOrders))
	}
}

// A second, differently-shaped order at the same sequence number must be
// rejected as a conflicting lock, not a sequence mismatch -- this is only
// true because RecordVote (a single authority's vote) no longer clears
// the pending lock; only ApplyConfirmation (actual quorum) does.
func TestConflictingOrderAfterVoteStillConflictsNotSequenceMismatch(t *testing.T) {
	store := NewMemoryStore()
	store.Credit("alice", "tok", 1000)
	now := time.Now()
	orderA := meshtypes.TransferOrder{
		Sender: "alice", Recipient: "bob", SequenceNumber: 0, TTLSeconds: 60,
		Timestamp: float64(now.Unix()), Amount: 100, TokenAddress: "tok",
	}
	orderB := orderA
	orderB.Recipient = "carol"

	ok, _ := store.Decide(orderA, now)
	if !ok {
		t.Fatal("expected orderA to be accepted")
	}
	store.RecordVote(orderA)

	ok, reason := store.Decide(orderB, now)
	if ok {
		t.Fatal("expected orderB to conflict with the still-pending lock from orderA")
	}
	if reason != meshtypes.ReasonConflictingLock {
		t.Errorf("expected ReasonConflictingLock after a vote with no quorum yet, got %s", reason)
	}
}

func TestDecideSequenceStrictlyIncreasingAcrossConfirmations(t *testing.T) {
	store := NewMemoryStore()
	store.Credit("alice", "tok", 10000)
	now := time.Now()

	var signed []meshtypes.TransferOrder
	for seq := uint64(0); seq < 5; seq++ {
		order := meshtypes.TransferOrder{
			OrderID: uuid.New(),
			Sender:  "alice", Recipient: "bob", SequenceNumber: seq, TTLSeconds: 60,
			Timestamp: float64(now.Unix()), Amount: 10, TokenAddress: "tok",
		}
		ok, reason := store.Decide(order, now)
		if !ok {
			t.Fatalf("seq %d: expected acceptance, got reason %s", seq, reason)
		}
		store.RecordVote(order)
		// Quorum reached: the client assembles and submits the
		// confirmation, which is what actually advances the sequence.
		store.ApplyConfirmation(meshtypes.ConfirmationOrder{OrderID: order.OrderID, TransferOrder: order})
		signed = append(signed, order)
	}

	account := store.Get("alice")
	if account.SequenceNumber != 5 {
		t.Errorf("expected sequence number 5 after 5 confirmed orders, got %d", account.SequenceNumber)
	}
	for i, order := range signed {
		if order.SequenceNumber != uint64(i) {
			t.Errorf("expected strictly increasing sequence numbers, order %d has seq %d", i, order.SequenceNumber)
		}
	}
}
