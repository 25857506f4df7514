// Package relay implements the MESH_RELAY flooding engine (spec §3,
// §4.E): TTL-bounded controlled flooding with split-horizon loop
// avoidance and per-order-ID deduplication, including the exception that
// lets a response bundle return to its own originator despite a dedup
// hit.
package relay

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
	"github.com/HuyPHD2024-2027/meshpay/internal/neighbor"
	"github.com/HuyPHD2024-2027/meshpay/internal/wire"
)

// Sender is the subset of transport.UDP the engine needs to flood to
// neighbors -- separated so tests can inject a fake.
type Sender interface {
	Send(msg wire.Message, dst meshtypes.Address) bool
}

// Handler processes the inner payload of a bundle that was addressed to
// (or terminates at) this node. Registered per inner MessageType by the
// owning role (client/authority), rather than through inheritance, per
// the callback-registration design note in spec §9.
type Handler func(bundle wire.RelayBundle, inner wire.Message)

// Engine is the per-node relay state: the neighbor table it floods
// through and the dedup set that bounds rebroadcast.
type Engine struct {
	Self       meshtypes.Address
	Table      *neighbor.Table
	Sender     Sender
	Log        *logrus.Entry
	DefaultTTL uint8

	mu   sync.Mutex
	seen map[string]bool

	handlersMu sync.Mutex
	handlers   map[wire.MessageType]Handler

	bufMu     sync.Mutex
	bufQueue  []bufferedBundle
	bufMaxAge time.Duration
	now       func() time.Time
}

// bufferedBundle is a MESH_RELAY bundle this node could not immediately
// forward because it currently has no neighbors, held for store-carry-
// forward delivery (spec §4.E supplement) until bufMaxAge elapses.
type bufferedBundle struct {
	bundle   wire.RelayBundle
	storedAt time.Time
}

// New returns an engine rooted at self, flooding through tbl via sender.
func New(self meshtypes.Address, tbl *neighbor.Table, sender Sender, defaultTTL uint8, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		Self:       self,
		Table:      tbl,
		Sender:     sender,
		DefaultTTL: defaultTTL,
		Log:        log.WithField("component", "relay"),
		seen:       make(map[string]bool),
		handlers:   make(map[wire.MessageType]Handler),
		bufMaxAge:  120 * time.Second,
		now:        time.Now,
	}
}

// SetBufferedMaxAge overrides how long a bundle may wait in the carry
// buffer for a neighbor to appear (default 120s, spec §9).
func (e *Engine) SetBufferedMaxAge(d time.Duration) {
	e.bufMu.Lock()
	defer e.bufMu.Unlock()
	e.bufMaxAge = d
}

// RegisterHandler wires inner-message delivery for innerType to fn. A
// second call for the same type replaces the first.
func (e *Engine) RegisterHandler(innerType wire.MessageType, fn Handler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers[innerType] = fn
}

// Submit wraps inner in a fresh RelayBundle originated by this node and
// floods it to every current neighbor.
func (e *Engine) Submit(orderID string, inner wire.Message) {
	e.SubmitAs(orderID, inner, e.Self)
}

// SubmitAs wraps inner in a RelayBundle attributed to origin rather than
// this node -- used by an authority responding on behalf of the client
// that originated the order, so the response's original_sender_id routes
// back to the client rather than the relaying authority (spec §9).
func (e *Engine) SubmitAs(orderID string, inner wire.Message, origin meshtypes.Address) {
	payload, err := wire.Encode(inner)
	if err != nil {
		e.Log.WithError(err).Warn("encode inner message for relay")
		return
	}
	bundle := wire.RelayBundle{
		OriginalSenderID: origin.NodeID,
		OriginAddress:    origin,
		InnerType:        inner.MessageType,
		InnerPayload:     payload,
		OrderID:          orderID,
		TTL:              e.DefaultTTL,
		HopPath:          []string{e.Self.NodeID},
	}
	e.markSeen(orderID)
	e.flood(bundle)
}

// ResubmitBundle re-floods inner using a previously preserved TTL and hop
// path rather than a fresh bundle, so a client retrying a transaction it
// only relayed for another originator does not reset that bundle's TTL
// budget (spec §9).
func (e *Engine) ResubmitBundle(orderID string, inner wire.Message, origin meshtypes.Address, ttl uint8, hopPath []string) {
	payload, err := wire.Encode(inner)
	if err != nil {
		e.Log.WithError(err).Warn("encode inner message for relay resubmit")
		return
	}
	bundle := wire.RelayBundle{
		OriginalSenderID: origin.NodeID,
		OriginAddress:    origin,
		InnerType:        inner.MessageType,
		InnerPayload:     payload,
		OrderID:          orderID,
		TTL:              ttl,
		HopPath:          append(append([]string{}, hopPath...), e.Self.NodeID),
	}
	e.markSeen(orderID)
	if bundle.TTL == 0 {
		return
	}
	e.flood(bundle)
}

// ResetDedup forgets orderID, so a subsequent Submit/SubmitAs or incoming
// bundle for it is treated as unseen. Used by the client retry loop when
// resubmitting a buffered transaction that has not yet reached quorum
// (spec §9).
func (e *Engine) ResetDedup(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.seen, orderID)
}

func (e *Engine) markSeen(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen[orderID] = true
}

func (e *Engine) alreadySeen(orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seen[orderID]
}

// flood sends bundle to every current neighbor not already in its hop
// path. If no eligible neighbor currently exists, the bundle is held in
// the carry buffer for store-carry-forward delivery rather than dropped.
func (e *Engine) flood(bundle wire.RelayBundle) {
	peers := e.Table.Snapshot()
	eligible := 0
	for _, p := range peers {
		if !bundle.Contains(p.Address.NodeID) {
			eligible++
		}
	}
	if eligible == 0 {
		e.Log.WithField("order_id", bundle.OrderID).Warn("no eligible neighbor, carrying bundle")
		e.bufMu.Lock()
		e.bufQueue = append(e.bufQueue, bufferedBundle{bundle: bundle, storedAt: e.now()})
		e.bufMu.Unlock()
		return
	}

	payload, err := wire.MarshalPayload(bundle)
	if err != nil {
		e.Log.WithError(err).Warn("marshal relay bundle")
		return
	}
	msg := wire.Message{
		MessageID:   uuid.New(),
		MessageType: wire.MeshRelay,
		Sender:      e.Self,
		Timestamp:   float64(time.Now().Unix()),
		Payload:     payload,
	}
	for _, peer := range peers {
		if bundle.Contains(peer.Address.NodeID) {
			continue
		}
		e.Sender.Send(msg, peer.Address)
	}
}

// FlushBuffered retries every carried bundle against the current neighbor
// table, dropping any that exceeded bufMaxAge while waiting. A bundle that
// still has no eligible neighbor stays carried with its original storage
// time. The node's receive loop calls it after every discovery beacon.
func (e *Engine) FlushBuffered() {
	e.bufMu.Lock()
	pending := e.bufQueue
	e.bufQueue = nil
	maxAge := e.bufMaxAge
	e.bufMu.Unlock()

	now := e.now()
	peers := e.Table.Snapshot()
	var keep []bufferedBundle
	for _, bb := range pending {
		if now.Sub(bb.storedAt) > maxAge {
			e.Log.WithField("order_id", bb.bundle.OrderID).Debug("carried bundle expired, dropping")
			continue
		}
		if !slices.ContainsFunc(peers, func(p meshtypes.PeerInfo) bool { return !bb.bundle.Contains(p.Address.NodeID) }) {
			keep = append(keep, bb)
			continue
		}
		e.flood(bb.bundle)
	}
	e.bufMu.Lock()
	e.bufQueue = append(keep, e.bufQueue...)
	e.bufMu.Unlock()
}

// HandleIncoming processes a received MESH_RELAY bundle: dedup (with the
// response-to-originator exception), local delivery, and re-flood.
//
// A bundle's order_id is shared by every authority's distinct
// TRANSFER_RESPONSE for the same order, so a response bundle addressed
// back to its own originator must be delivered even when that order_id
// was already seen (spec §4.E, §9).
func (e *Engine) HandleIncoming(bundle wire.RelayBundle) {
	isResponseHome := bundle.InnerType == wire.TransferResponseMsg && bundle.OriginalSenderID == e.Self.NodeID

	if e.alreadySeen(bundle.OrderID) && !isResponseHome {
		return
	}
	e.markSeen(bundle.OrderID)

	e.deliverLocal(bundle)

	if bundle.TTL <= 1 || bundle.Contains(e.Self.NodeID) {
		return
	}
	e.flood(bundle.Advance(e.Self.NodeID))
}

func (e *Engine) deliverLocal(bundle wire.RelayBundle) {
	inner, err := wire.Decode(bundle.InnerPayload)
	if err != nil {
		e.Log.WithError(err).Debug("drop malformed relay inner payload")
		return
	}
	e.handlersMu.Lock()
	fn := e.handlers[bundle.InnerType]
	e.handlersMu.Unlock()
	if fn == nil {
		e.Log.WithField("inner_type", bundle.InnerType).Debug("no handler registered, dropping")
		return
	}
	fn(bundle, inner)
}
