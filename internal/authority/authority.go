// Package authority implements the committee member role (spec §4.F):
// the decision procedure that accepts or rejects a TransferOrder and
// signs a response, and confirmation application once a client presents
// a quorum certificate.
package authority

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HuyPHD2024-2027/meshpay/internal/crypto"
	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
	"github.com/HuyPHD2024-2027/meshpay/internal/relay"
	"github.com/HuyPHD2024-2027/meshpay/internal/wire"
)

// Authority is one committee member's role state, layered on top of a
// node's shared relay Engine (spec §9: roles are composed onto a Node via
// callback registration, not inheritance).
type Authority struct {
	ID     string
	Self   meshtypes.Address
	Store  *MemoryStore
	Engine *relay.Engine
	Now    func() time.Time
	Log    *logrus.Entry
}

// New returns an authority role bound to engine, registering its
// TRANSFER_REQUEST and CONFIRMATION_REQUEST handlers.
func New(id string, self meshtypes.Address, store *MemoryStore, engine *relay.Engine, log *logrus.Entry) *Authority {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	a := &Authority{
		ID:     id,
		Self:   self,
		Store:  store,
		Engine: engine,
		Now:    time.Now,
		Log:    log.WithField("component", "authority").WithField("authority_id", id),
	}
	engine.RegisterHandler(wire.TransferRequest, a.handleTransferRequest)
	engine.RegisterHandler(wire.ConfirmationRequest, a.handleConfirmationRequest)
	return a
}

func (a *Authority) handleTransferRequest(bundle wire.RelayBundle, inner wire.Message) {
	var payload wire.TransferRequestPayload
	if err := wire.UnmarshalPayload(inner.Payload, &payload); err != nil {
		a.Log.WithError(err).Debug("drop malformed transfer request")
		return
	}
	order := payload.TransferOrder

	ok, reason := a.Store.Decide(order, a.Now())
	resp := meshtypes.TransferResponse{
		TransferOrder: order,
		Success:       ok,
		Error:         reason,
		AuthorityID:   a.ID,
	}
	if ok {
		resp.AuthoritySignature = crypto.Sign(a.ID, order.OrderID.String())
		a.Store.RecordVote(order)
	}

	respPayload, err := wire.MarshalPayload(wire.TransferResponsePayload{
		TransferOrder:      order,
		Success:            resp.Success,
		Error:              resp.Error,
		AuthorityID:        resp.AuthorityID,
		AuthoritySignature: resp.AuthoritySignature,
	})
	if err != nil {
		a.Log.WithError(err).Warn("marshal transfer response")
		return
	}
	respMsg := wire.Message{
		MessageID:   inner.MessageID,
		MessageType: wire.TransferResponseMsg,
		Sender:      a.Self,
		Timestamp:   float64(a.Now().Unix()),
		Payload:     respPayload,
	}
	// Respond attributed to the original client, not this authority, so
	// the response bundle routes home through dedup's response exception.
	a.Engine.SubmitAs(order.OrderID.String(), respMsg, bundle.OriginAddress)
}

func (a *Authority) handleConfirmationRequest(bundle wire.RelayBundle, inner wire.Message) {
	var payload wire.ConfirmationRequestPayload
	if err := wire.UnmarshalPayload(inner.Payload, &payload); err != nil {
		a.Log.WithError(err).Debug("drop malformed confirmation request")
		return
	}
	a.Store.ApplyConfirmation(payload.ConfirmationOrder)
}
