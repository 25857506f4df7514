package wire

import (
	"encoding/json"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
)

// TransferRequestPayload carries a TransferOrder (§3), used as the payload
// of a TRANSFER_REQUEST message, or as the inner payload of a MESH_RELAY
// bundle wrapping one.
type TransferRequestPayload struct {
	TransferOrder meshtypes.TransferOrder `json:"transfer_order"`
}

// TransferResponsePayload carries a single authority's vote.
type TransferResponsePayload struct {
	TransferOrder      meshtypes.TransferOrder `json:"transfer_order"`
	Success            bool                    `json:"success"`
	Error              meshtypes.Reason        `json:"error,omitempty"`
	AuthorityID        string                  `json:"authority_id"`
	AuthoritySignature []byte                  `json:"authority_signature,omitempty"`
}

// ConfirmationRequestPayload carries a client-assembled quorum certificate.
type ConfirmationRequestPayload struct {
	ConfirmationOrder meshtypes.ConfirmationOrder `json:"confirmation_order"`
}

// PeerDiscoveryPayload is the PEER_DISCOVERY beacon payload (§4.D, §6).
type PeerDiscoveryPayload struct {
	NodeInfo            meshtypes.Address         `json:"node_info"`
	ServiceCapabilities []string                  `json:"service_capabilities"`
	NetworkMetrics      *meshtypes.NetworkMetrics `json:"network_metrics,omitempty"`
}

// RelayBundle is the MESH_RELAY payload (§3, §4.E): the unit of forwarding
// in the opportunistic mesh. InnerPayload is opaque to the relay engine --
// only inner_type routes local delivery.
type RelayBundle struct {
	OriginalSenderID string            `json:"original_sender_id"`
	OriginAddress    meshtypes.Address `json:"origin_address"`
	InnerType        MessageType       `json:"inner_type"`
	InnerPayload     json.RawMessage   `json:"inner_payload"`
	OrderID          string            `json:"order_id"`
	TTL              uint8             `json:"ttl"`
	HopPath          []string          `json:"hop_path"`
}

// Contains reports whether nodeID already appears in the hop path -- the
// split-horizon check (§3, §4.E).
func (b RelayBundle) Contains(nodeID string) bool {
	for _, h := range b.HopPath {
		if h == nodeID {
			return true
		}
	}
	return false
}

// Advance returns the bundle that should be re-flooded by hop, with ttl
// decremented and hop appended to the (copied) hop path. It never mutates
// the receiver's HopPath slice, so split-horizon evaluation elsewhere on
// the original bundle remains unaffected.
func (b RelayBundle) Advance(hop string) RelayBundle {
	next := b
	next.TTL = b.TTL - 1
	next.HopPath = append(append([]string{}, b.HopPath...), hop)
	return next
}
