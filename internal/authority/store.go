package authority

import (
	"sync"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
)

// AccountStore is the external account collaborator consumed by the
// authority decision procedure (spec §6): get/apply_confirmation.
// Persistence and shard assignment (Non-goal (b)) are out of scope --
// this is a plain in-memory ledger.
type AccountStore interface {
	Get(address string) *meshtypes.AccountState
	ApplyConfirmation(order meshtypes.ConfirmationOrder) bool
}

// MemoryStore is an in-memory AccountStore.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*meshtypes.AccountState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*meshtypes.AccountState)}
}

// Get returns the account for address, creating it (with zero balances
// and sequence 0) if it does not yet exist.
func (s *MemoryStore) Get(address string) *meshtypes.AccountState {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[address]
	if !ok {
		a = meshtypes.NewAccountState(address)
		s.accounts[address] = a
	}
	return a
}

// Credit adds amount to address's MeshpayBalance for token, creating the
// account if necessary. Used to seed account balances, for example in
// test fixtures; ApplyConfirmation adjusts balances directly.
func (s *MemoryStore) Credit(address, token string, amount float64) {
	a := s.Get(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Balance(token).MeshpayBalance += amount
}

// ApplyConfirmation debits the sender and credits the recipient named in
// order, idempotently: a confirmation already recorded for this order_id
// on the sender's account is a no-op and reports false. This is also
// where the sender's sequence number advances and its pending lock
// clears (spec §4.F) -- a single authority's accepting vote
// (RecordVote) is not quorum, so those state transitions wait for the
// client's CONFIRMATION_REQUEST to actually land here.
func (s *MemoryStore) ApplyConfirmation(order meshtypes.ConfirmationOrder) bool {
	to := order.TransferOrder
	orderID := to.OrderID.String()
	sender := s.Get(to.Sender)

	s.mu.Lock()
	if _, done := sender.ConfirmedTransfers[orderID]; done {
		s.mu.Unlock()
		return false
	}
	sender.ConfirmedTransfers[orderID] = order
	sender.Balance(to.TokenAddress).MeshpayBalance -= float64(to.Amount)
	if sender.SequenceNumber == to.SequenceNumber {
		sender.SequenceNumber++
	}
	sender.PendingConfirmation = nil
	s.mu.Unlock()

	recipient := s.Get(to.Recipient)
	s.mu.Lock()
	recipient.Balance(to.TokenAddress).MeshpayBalance += float64(to.Amount)
	s.mu.Unlock()
	return true
}
