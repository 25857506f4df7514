package authority

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
)

func TestApplyConfirmationDebitsAndCredits(t *testing.T) {
	store := NewMemoryStore()
	store.Credit("alice", "tok", 500)

	order := meshtypes.TransferOrder{
		OrderID: uuid.New(), Sender: "alice", Recipient: "bob",
		TokenAddress: "tok", Amount: 100,
	}
	confirmation := meshtypes.ConfirmationOrder{OrderID: order.OrderID, TransferOrder: order}

	if ok := store.ApplyConfirmation(confirmation); !ok {
		t.Fatal("expected first application to succeed")
	}

	alice := store.Get("alice")
	bob := store.Get("bob")
	if alice.Balance("tok").MeshpayBalance != 400 {
		t.Errorf("expected alice balance 400, got %v", alice.Balance("tok").MeshpayBalance)
	}
	if bob.Balance("tok").MeshpayBalance != 100 {
		t.Errorf("expected bob balance 100, got %v", bob.Balance("tok").MeshpayBalance)
	}
}

func TestApplyConfirmationIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	store.Credit("alice", "tok", 500)

	order := meshtypes.TransferOrder{
		OrderID: uuid.New(), Sender: "alice", Recipient: "bob",
		TokenAddress: "tok", Amount: 100,
	}
	confirmation := meshtypes.ConfirmationOrder{OrderID: order.OrderID, TransferOrder: order}

	store.ApplyConfirmation(confirmation)
	applied := store.ApplyConfirmation(confirmation)
	if applied {
		t.Error("expected second application of the same confirmation to be a no-op")
	}

	alice := store.Get("alice")
	if alice.Balance("tok").MeshpayBalance != 400 {
		t.Errorf("expected balance to be debited exactly once (400), got %v", alice.Balance("tok").MeshpayBalance)
	}
}

func TestApplyConfirmationAdvancesSequenceAndClearsPendingLock(t *testing.T) {
	store := NewMemoryStore()
	store.Credit("alice", "tok", 500)

	order := meshtypes.TransferOrder{
		OrderID: uuid.New(), Sender: "alice", Recipient: "bob",
		SequenceNumber: 0, TokenAddress: "tok", Amount: 100,
		TTLSeconds: 60, Timestamp: float64(time.Now().Unix()),
	}
	store.Decide(order, time.Now())

	confirmation := meshtypes.ConfirmationOrder{OrderID: order.OrderID, TransferOrder: order}
	if ok := store.ApplyConfirmation(confirmation); !ok {
		t.Fatal("expected confirmation to apply")
	}

	alice := store.Get("alice")
	if alice.SequenceNumber != 1 {
		t.Errorf("expected sequence number 1 after confirmation, got %d", alice.SequenceNumber)
	}
	if alice.PendingConfirmation != nil {
		t.Error("expected pending confirmation to be cleared once the confirmation lands")
	}
}
