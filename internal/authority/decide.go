package authority

import (
	"time"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
)

// Decide runs the spec §4.F decision procedure against order, under the
// store's lock, and reserves the pending lock on success so a concurrent
// order for the same account cannot race past the conflict check. It
// returns (true, "") on acceptance or (false, reason) on rejection.
func (s *MemoryStore) Decide(order meshtypes.TransferOrder, now time.Time) (bool, meshtypes.Reason) {
	account := s.Get(order.Sender)

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.SequenceNumber != account.SequenceNumber {
		return false, meshtypes.ReasonSequenceMismatch
	}

	if age := float64(now.Unix()) - order.Timestamp; age > order.TTLSeconds {
		return false, meshtypes.ReasonLockExpired
	}

	if account.PendingConfirmation != nil && !account.PendingConfirmation.SameContent(order) {
		return false, meshtypes.ReasonConflictingLock
	}

	balance := account.Balance(order.TokenAddress)
	if balance.MeshpayBalance < float64(order.Amount) {
		return false, meshtypes.ReasonInsufficientFunds
	}

	account.PendingConfirmation = &order
	return true, ""
}

// RecordVote appends order to the ledger of orders this authority has
// signed, called once the authority has signed and is about to respond.
// It deliberately leaves the pending lock and sequence number untouched:
// a single authority's vote is not quorum, so account.sequence_number
// only advances and pending_confirmation only clears once the client's
// CONFIRMATION_REQUEST lands (ApplyConfirmation, spec §4.F). Until then
// the lock set by Decide stays in place, rejecting a conflicting order at
// the same sequence with CONFLICTING_LOCK rather than SEQUENCE_MISMATCH.
func (s *MemoryStore) RecordVote(order meshtypes.TransferOrder) {
	account := s.Get(order.Sender)
	s.mu.Lock()
	defer s.mu.Unlock()
	account.SignedOrders = append(account.SignedOrders, order)
}
