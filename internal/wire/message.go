// Package wire implements the MeshPay on-wire JSON framing (spec §4.A,
// §6): a discriminated Message envelope plus typed payload helpers, and a
// RelayBundle wrapper used by the mesh relay engine. The codec is strictly
// round-trippable: Decode(Encode(m)) == m for every well-formed m.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
)

// MessageType is the wire discriminator tag.
type MessageType string

const (
	TransferRequest     MessageType = "TRANSFER_REQUEST"
	TransferResponseMsg MessageType = "TRANSFER_RESPONSE"
	ConfirmationRequest MessageType = "CONFIRMATION_REQUEST"
	ConfirmationResp    MessageType = "CONFIRMATION_RESPONSE"
	SyncRequest         MessageType = "SYNC_REQUEST"
	SyncResponse        MessageType = "SYNC_RESPONSE"
	PeerDiscovery       MessageType = "PEER_DISCOVERY"
	Heartbeat           MessageType = "HEARTBEAT"
	MeshRelay           MessageType = "MESH_RELAY"
	ErrorMsg            MessageType = "ERROR"
)

// knownTypes lists every discriminator the codec accepts; anything else is
// a DecodeError.
var knownTypes = map[MessageType]bool{
	TransferRequest: true, TransferResponseMsg: true, ConfirmationRequest: true,
	ConfirmationResp: true, SyncRequest: true, SyncResponse: true,
	PeerDiscovery: true, Heartbeat: true, MeshRelay: true, ErrorMsg: true,
}

// DecodeError wraps a malformed wire message per spec §7: it is dropped
// silently by the caller, never surfaced to the sender.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "decode error: " + e.Reason }

// Message is the top-level envelope for every MeshPay wire message.
type Message struct {
	MessageID   uuid.UUID          `json:"message_id"`
	MessageType MessageType        `json:"message_type"`
	Sender      meshtypes.Address  `json:"sender"`
	Recipient   *meshtypes.Address `json:"recipient"`
	Timestamp   float64            `json:"timestamp"`
	Payload     json.RawMessage    `json:"payload"`
	Signature   *string            `json:"signature"`
}

// Encode serialises m to its wire form.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses the wire form back into a Message. Unknown discriminators
// raise a *DecodeError; unknown fields are ignored for forward
// compatibility (json.Unmarshal already does this for struct targets).
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, &DecodeError{Reason: err.Error()}
	}
	if !knownTypes[m.MessageType] {
		return Message{}, &DecodeError{Reason: fmt.Sprintf("unknown message_type %q", m.MessageType)}
	}
	return m, nil
}

// MarshalPayload encodes v as a Message payload.
func MarshalPayload(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// UnmarshalPayload decodes a Message payload into v.
func UnmarshalPayload(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}
