// Package client implements the payer role (spec §4.G): submitting
// TransferOrders, buffering them until quorum, retrying over the
// opportunistic mesh, and emitting the confirmation once finalized.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/HuyPHD2024-2027/meshpay/internal/crypto"
	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
	"github.com/HuyPHD2024-2027/meshpay/internal/relay"
	"github.com/HuyPHD2024-2027/meshpay/internal/wire"
)

// Client is the payer role state, layered onto a node's shared relay
// Engine the same way Authority is (spec §9).
type Client struct {
	ID     string
	Self   meshtypes.Address
	Engine *relay.Engine
	Now    func() time.Time
	Log    *logrus.Entry

	RetryInterval   time.Duration
	QuorumThreshold func(committeeSize int) int
	CommitteeSize   func() int
	Verifier        crypto.Verifier

	mu           sync.Mutex
	transactions map[string]*meshtypes.BufferedTransaction

	onFinalized func(order meshtypes.TransferOrder)
}

// New returns a client role bound to engine, registering its
// TRANSFER_RESPONSE and CONFIRMATION_REQUEST handlers. committeeSize and threshold are supplied as
// callbacks so the client always consults the live neighbor-derived
// committee view rather than a snapshot taken at construction.
func New(id string, self meshtypes.Address, engine *relay.Engine, committeeSize func() int, threshold func(int) int, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Client{
		ID:              id,
		Self:            self,
		Engine:          engine,
		Now:             time.Now,
		Log:             log.WithField("component", "client").WithField("client_id", id),
		RetryInterval:   5 * time.Second,
		QuorumThreshold: threshold,
		CommitteeSize:   committeeSize,
		Verifier:        crypto.NoopVerifier{},
		transactions:    make(map[string]*meshtypes.BufferedTransaction),
	}
	engine.RegisterHandler(wire.TransferResponseMsg, c.handleTransferResponse)
	engine.RegisterHandler(wire.ConfirmationRequest, c.handleConfirmationRequest)
	return c
}

// OnFinalized registers a callback invoked once a transaction reaches
// quorum and its confirmation has been emitted.
func (c *Client) OnFinalized(fn func(order meshtypes.TransferOrder)) {
	c.onFinalized = fn
}

// Transfer submits a new TransferOrder: it is recorded as a buffered
// transaction in INIT/BUFFERED state and flooded over the mesh.
func (c *Client) Transfer(recipient, tokenAddress string, amount uint64, sequenceNumber uint64, ttlSeconds float64) *meshtypes.BufferedTransaction {
	order := meshtypes.TransferOrder{
		OrderID:        uuid.New(),
		Sender:         c.ID,
		Recipient:      recipient,
		TokenAddress:   tokenAddress,
		Amount:         amount,
		SequenceNumber: sequenceNumber,
		Timestamp:      float64(c.Now().Unix()),
		TTLSeconds:     ttlSeconds,
	}

	bt := &meshtypes.BufferedTransaction{
		Order:              order,
		SignaturesReceived: make(map[string][]byte),
		SignaturesRequired: c.QuorumThreshold(c.CommitteeSize()),
		CreatedAt:          float64(c.Now().Unix()),
		Status:             meshtypes.StatusBuffered,
	}

	c.mu.Lock()
	c.transactions[order.OrderID.String()] = bt
	c.mu.Unlock()

	c.flood(order)
	return bt
}

func (c *Client) flood(order meshtypes.TransferOrder) {
	payload, err := wire.MarshalPayload(wire.TransferRequestPayload{TransferOrder: order})
	if err != nil {
		c.Log.WithError(err).Warn("marshal transfer request")
		return
	}
	msg := wire.Message{
		MessageID:   uuid.New(),
		MessageType: wire.TransferRequest,
		Sender:      c.Self,
		Timestamp:   float64(c.Now().Unix()),
		Payload:     payload,
	}
	c.Engine.Submit(order.OrderID.String(), msg)
}

func (c *Client) handleTransferResponse(bundle wire.RelayBundle, inner wire.Message) {
	var payload wire.TransferResponsePayload
	if err := wire.UnmarshalPayload(inner.Payload, &payload); err != nil {
		c.Log.WithError(err).Debug("drop malformed transfer response")
		return
	}
	if !payload.Success {
		c.Log.WithFields(logrus.Fields{
			"authority_id": payload.AuthorityID,
			"reason":       payload.Error,
		}).Debug("authority rejected transfer order")
		return
	}
	if !c.Verifier.Verify(payload.AuthorityID, payload.TransferOrder.OrderID.String(), payload.AuthoritySignature) {
		c.Log.WithField("authority_id", payload.AuthorityID).Warn("signature verification failed")
		return
	}

	orderID := payload.TransferOrder.OrderID.String()

	c.mu.Lock()
	bt, ok := c.transactions[orderID]
	if !ok {
		c.mu.Unlock()
		return
	}
	reachedQuorum := bt.AddSignature(payload.AuthorityID, payload.AuthoritySignature)
	justFinalized := reachedQuorum && bt.Status != meshtypes.StatusFinalized
	if justFinalized {
		bt.Status = meshtypes.StatusFinalized
	}
	order := bt.Order
	c.mu.Unlock()

	if justFinalized {
		c.finalize(order, bt)
	}
}

// finalize assembles the quorum certificate and floods the confirmation,
// then invokes the finalized callback if one is registered.
func (c *Client) finalize(order meshtypes.TransferOrder, bt *meshtypes.BufferedTransaction) {
	c.mu.Lock()
	sigs := make([][]byte, 0, len(bt.SignaturesReceived))
	for _, sig := range bt.SignaturesReceived {
		sigs = append(sigs, sig)
	}
	c.mu.Unlock()

	confirmation := meshtypes.ConfirmationOrder{
		OrderID:             order.OrderID,
		TransferOrder:       order,
		AuthoritySignatures: sigs,
		Timestamp:           float64(c.Now().Unix()),
		Status:              meshtypes.StatusFinalized,
	}
	payload, err := wire.MarshalPayload(wire.ConfirmationRequestPayload{ConfirmationOrder: confirmation})
	if err != nil {
		c.Log.WithError(err).Warn("marshal confirmation request")
		return
	}
	msg := wire.Message{
		MessageID:   uuid.New(),
		MessageType: wire.ConfirmationRequest,
		Sender:      c.Self,
		Timestamp:   float64(c.Now().Unix()),
		Payload:     payload,
	}
	c.Engine.Submit(order.OrderID.String(), msg)

	if c.onFinalized != nil {
		c.onFinalized(order)
	}
}

// handleConfirmationRequest lets a client that is the recipient of a
// finalized transfer observe the confirmation. Balance application is the
// authority/account-store's responsibility; this is purely for the
// recipient-side notification surface named in spec §6.
func (c *Client) handleConfirmationRequest(bundle wire.RelayBundle, inner wire.Message) {
	var payload wire.ConfirmationRequestPayload
	if err := wire.UnmarshalPayload(inner.Payload, &payload); err != nil {
		c.Log.WithError(err).Debug("drop malformed confirmation request")
		return
	}
	if payload.ConfirmationOrder.TransferOrder.Recipient != c.ID {
		return
	}
	c.Log.WithField("order_id", payload.ConfirmationOrder.OrderID).Info("confirmation received as recipient")
}

// Buffered returns a snapshot of the client's pending/finalized
// transactions, keyed by order_id, for the status surface (spec §6).
func (c *Client) Buffered() map[string]meshtypes.BufferedTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]meshtypes.BufferedTransaction, len(c.transactions))
	for id, bt := range c.transactions {
		out[id] = *bt
	}
	return out
}

// RetryLoop re-floods every buffered, not-yet-finalized transaction on
// RetryInterval until ctx is cancelled. maxAge only bounds relay bundles
// (spec §4.G): a transaction this node is merely carrying for another
// originator is dropped once it's too old to still be live, but a
// client's own order keeps being re-injected indefinitely — the only
// user-visible failure is staying BUFFERED forever (spec §7).
func (c *Client) RetryLoop(ctx context.Context, maxAge time.Duration) {
	ticker := time.NewTicker(c.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.retryOnce(maxAge)
		}
	}
}

func (c *Client) retryOnce(maxAge time.Duration) {
	now := c.Now()

	c.mu.Lock()
	var toRetry []*meshtypes.BufferedTransaction
	for id, bt := range c.transactions {
		if bt.Status == meshtypes.StatusFinalized {
			continue
		}
		age := now.Sub(time.Unix(int64(bt.CreatedAt), 0))
		if bt.IsRelay && age > maxAge {
			delete(c.transactions, id)
			continue
		}
		bt.LastRetry = float64(now.Unix())
		bt.RetryCount++
		toRetry = append(toRetry, bt)
	}
	c.mu.Unlock()

	for _, bt := range toRetry {
		c.Engine.ResetDedup(bt.Order.OrderID.String())
		if bt.IsRelay && bt.RelayMetadata != nil {
			c.resubmitRelayed(bt)
			continue
		}
		c.flood(bt.Order)
	}
}

// resubmitRelayed re-floods a transaction this node is only carrying on
// behalf of another originator, preserving the original sender identity
// and remaining TTL/hop-path rather than claiming origination.
func (c *Client) resubmitRelayed(bt *meshtypes.BufferedTransaction) {
	payload, err := wire.MarshalPayload(wire.TransferRequestPayload{TransferOrder: bt.Order})
	if err != nil {
		c.Log.WithError(err).Warn("marshal relayed transfer request")
		return
	}
	msg := wire.Message{
		MessageID:   uuid.New(),
		MessageType: wire.TransferRequest,
		Sender:      c.Self,
		Timestamp:   float64(c.Now().Unix()),
		Payload:     payload,
	}
	meta := bt.RelayMetadata
	c.Engine.ResubmitBundle(bt.Order.OrderID.String(), msg, meta.OriginAddress, meta.TTL, meta.HopPath)
}
