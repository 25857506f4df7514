package meshtypes

// AccountState is the authority-side ledger entry for one client address.
// Shard assignment and on-chain anchoring (spec Non-goal (b)) are not
// represented here; this is purely the off-chain settlement view.
type AccountState struct {
	Address             string
	Balances            map[string]*TokenBalance // token_address -> balance
	SequenceNumber       uint64
	LastUpdate          float64
	PendingConfirmation *TransferOrder
	ConfirmedTransfers  map[string]ConfirmationOrder // order_id -> certificate, for idempotence
	// SignedOrders is the ordered, per-sender ledger of accepted orders used
	// by testable property 3 (strictly increasing sequence numbers).
	SignedOrders []TransferOrder
}

// NewAccountState returns a zeroed account ready to accept sequence 0.
func NewAccountState(address string) *AccountState {
	return &AccountState{
		Address:            address,
		Balances:           make(map[string]*TokenBalance),
		ConfirmedTransfers: make(map[string]ConfirmationOrder),
	}
}

// Balance returns the balance record for token, creating a zero one if
// absent so callers never need a nil check before reading MeshpayBalance.
func (a *AccountState) Balance(token string) *TokenBalance {
	b, ok := a.Balances[token]
	if !ok {
		b = &TokenBalance{TokenSymbol: token, TokenAddress: token}
		a.Balances[token] = b
	}
	return b
}

// PerformanceStats mirrors the operator-shell accessor of the same name in
// spec §6: transaction_count, error_count, sync_count.
type PerformanceStats struct {
	TransactionCount int64 `json:"transaction_count"`
	ErrorCount       int64 `json:"error_count"`
	SyncCount        int64 `json:"sync_count"`
}
