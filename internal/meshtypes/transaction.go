package meshtypes

import "github.com/google/uuid"

// TransactionStatus is the lifecycle state of a ConfirmationOrder or a
// client's BufferedTransaction.
type TransactionStatus string

const (
	StatusInit      TransactionStatus = "INIT"
	StatusBuffered  TransactionStatus = "BUFFERED"
	StatusPending   TransactionStatus = "PENDING"
	StatusConfirmed TransactionStatus = "CONFIRMED"
	StatusFinalized TransactionStatus = "FINALIZED"
	StatusRejected  TransactionStatus = "REJECTED"
)

// Reason enumerates the authority-side rejection causes from spec §7. These
// travel as the Error field of a TransferResponse, never as a Go error.
type Reason string

const (
	ReasonSequenceMismatch  Reason = "SEQUENCE_MISMATCH"
	ReasonLockExpired       Reason = "LOCK_EXPIRED"
	ReasonConflictingLock   Reason = "CONFLICTING_LOCK"
	ReasonInsufficientFunds Reason = "INSUFFICIENT_FUNDS"
)

// TransferOrder is the client's signed spend intent -- the "Lock". Replay
// protection comes from the monotonic SequenceNumber; Epoch tracks the
// committee epoch and TTLSeconds bounds lock validity.
type TransferOrder struct {
	OrderID        uuid.UUID `json:"order_id"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	TokenAddress   string    `json:"token_address"`
	Amount         uint64    `json:"amount"`
	SequenceNumber uint64    `json:"sequence_number"`
	Timestamp      float64   `json:"timestamp"`
	Signature      []byte    `json:"signature,omitempty"`
	Epoch          uint32    `json:"epoch"`
	TTLSeconds     float64   `json:"ttl_seconds"`
}

// SameContent reports whether two orders describe the same transfer,
// independent of signature bytes -- used to detect protocol violations
// where a sender re-signs a different order at an already-voted sequence.
func (o TransferOrder) SameContent(other TransferOrder) bool {
	return o.Sender == other.Sender &&
		o.Recipient == other.Recipient &&
		o.TokenAddress == other.TokenAddress &&
		o.Amount == other.Amount &&
		o.SequenceNumber == other.SequenceNumber
}

// TransferResponse is a single authority's vote on a TransferOrder.
type TransferResponse struct {
	TransferOrder      TransferOrder `json:"transfer_order"`
	Success            bool          `json:"success"`
	Error              Reason        `json:"error,omitempty"`
	AuthorityID        string        `json:"authority_id"`
	AuthoritySignature []byte        `json:"authority_signature,omitempty"`
}

// ConfirmationOrder is the client-assembled quorum certificate.
type ConfirmationOrder struct {
	OrderID             uuid.UUID         `json:"order_id"`
	TransferOrder       TransferOrder     `json:"transfer_order"`
	AuthoritySignatures [][]byte          `json:"authority_signatures"`
	Timestamp           float64           `json:"timestamp"`
	Status              TransactionStatus `json:"status"`
}

// HasQuorum reports whether enough signatures were collected.
func (c ConfirmationOrder) HasQuorum(threshold int) bool {
	return len(c.AuthoritySignatures) >= threshold
}

// RelayMetadata preserves the originator framing of a store-carry-forward
// bundle across retries, so a relayed (non-originated) buffered transaction
// can be re-flooded without claiming to be its own originator.
type RelayMetadata struct {
	OriginalSenderID string   `json:"original_sender_id"`
	OriginAddress    Address  `json:"origin_address"`
	TTL              uint8    `json:"ttl"`
	HopPath          []string `json:"hop_path"`
}

// BufferedTransaction is a transaction awaiting quorum on the client side.
type BufferedTransaction struct {
	Order              TransferOrder
	SignaturesReceived map[string][]byte // authority_id -> signature
	SignaturesRequired int
	CreatedAt          float64
	LastRetry          float64
	RetryCount         int
	Status             TransactionStatus
	IsRelay            bool
	RelayMetadata      *RelayMetadata
}

// HasQuorum reports whether enough distinct authority signatures arrived.
func (b *BufferedTransaction) HasQuorum() bool {
	return len(b.SignaturesReceived) >= b.SignaturesRequired
}

// AddSignature records a signature from authorityID, ignoring duplicates
// from an authority already credited (first response per identity wins).
// Returns true if quorum is now reached.
func (b *BufferedTransaction) AddSignature(authorityID string, sig []byte) bool {
	if _, ok := b.SignaturesReceived[authorityID]; !ok {
		b.SignaturesReceived[authorityID] = sig
	}
	return b.HasQuorum()
}
