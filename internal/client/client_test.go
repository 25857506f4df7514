package client

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
	"github.com/HuyPHD2024-2027/meshpay/internal/neighbor"
	"github.com/HuyPHD2024-2027/meshpay/internal/relay"
	"github.com/HuyPHD2024-2027/meshpay/internal/wire"
)

type fakeSender struct {
	mu  sync.Mutex
	got []wire.Message
}

func (f *fakeSender) Send(msg wire.Message, dst meshtypes.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, msg)
	return true
}

func newTestClient(t *testing.T, threshold int) (*Client, *relay.Engine, *fakeSender) {
	t.Helper()
	self := meshtypes.Address{NodeID: "client-1"}
	tbl := neighbor.New(time.Minute)
	tbl.Insert(meshtypes.PeerInfo{Address: meshtypes.Address{NodeID: "authority-1"}})
	sender := &fakeSender{}
	engine := relay.New(self, tbl, sender, 8, nil)
	c := New("client-1", self, engine, func() int { return 3 }, func(int) int { return threshold }, nil)
	return c, engine, sender
}

func respondFromAuthority(t *testing.T, c *Client, engine *relay.Engine, orderID, authorityID string, success bool) {
	t.Helper()
	bt := c.Buffered()[orderID]
	payload, err := wire.MarshalPayload(wire.TransferResponsePayload{
		TransferOrder:      bt.Order,
		Success:            success,
		AuthorityID:        authorityID,
		AuthoritySignature: []byte(authorityID),
	})
	if err != nil {
		t.Fatalf("marshal response payload: %v", err)
	}
	inner := wire.Message{MessageType: wire.TransferResponseMsg, Payload: payload}
	bundle := wire.RelayBundle{InnerType: wire.TransferResponseMsg, OriginalSenderID: "client-1", OrderID: orderID}
	engine.HandleIncoming(bundleWithInner(bundle, inner))
}

func bundleWithInner(bundle wire.RelayBundle, inner wire.Message) wire.RelayBundle {
	payload, _ := wire.Encode(inner)
	bundle.InnerPayload = payload
	return bundle
}

func TestTransferBuffersAndFloods(t *testing.T) {
	c, _, sender := newTestClient(t, 2)
	bt := c.Transfer("bob", "tok", 100, 0, 60)

	if bt.Status != meshtypes.StatusBuffered {
		t.Errorf("expected status BUFFERED, got %s", bt.Status)
	}
	if len(sender.got) != 1 {
		t.Errorf("expected 1 flood send to the only neighbor, got %d", len(sender.got))
	}
}

func TestHandleTransferResponseReachesQuorumAndFinalizes(t *testing.T) {
	c, engine, _ := newTestClient(t, 2)
	bt := c.Transfer("bob", "tok", 100, 0, 60)
	orderID := bt.Order.OrderID.String()

	var finalized bool
	c.OnFinalized(func(order meshtypes.TransferOrder) { finalized = true })

	respondFromAuthority(t, c, engine, orderID, "authority-1", true)
	if finalized {
		t.Fatal("expected no finalization after only 1 of 2 required signatures")
	}

	respondFromAuthority(t, c, engine, orderID, "authority-2", true)
	if !finalized {
		t.Fatal("expected finalization once quorum threshold reached")
	}

	got := c.Buffered()[orderID]
	if got.Status != meshtypes.StatusFinalized {
		t.Errorf("expected status FINALIZED, got %s", got.Status)
	}
}

func TestHandleTransferResponseIgnoresRejection(t *testing.T) {
	c, engine, _ := newTestClient(t, 1)
	bt := c.Transfer("bob", "tok", 100, 0, 60)
	orderID := bt.Order.OrderID.String()

	respondFromAuthority(t, c, engine, orderID, "authority-1", false)

	got := c.Buffered()[orderID]
	if got.HasQuorum() {
		t.Error("expected a rejection response not to count toward quorum")
	}
}

func TestHandleTransferResponseDuplicateAuthorityDoesNotDoubleCount(t *testing.T) {
	c, engine, _ := newTestClient(t, 2)
	bt := c.Transfer("bob", "tok", 100, 0, 60)
	orderID := bt.Order.OrderID.String()

	respondFromAuthority(t, c, engine, orderID, "authority-1", true)
	respondFromAuthority(t, c, engine, orderID, "authority-1", true)

	got := c.Buffered()[orderID]
	if len(got.SignaturesReceived) != 1 {
		t.Errorf("expected exactly 1 distinct signature, got %d", len(got.SignaturesReceived))
	}
}

// bufferRelayed installs a buffered transaction flagged as carried on
// behalf of another originator, the shape a store-carry-forward relay
// bundle would produce, bypassing Transfer (which always originates its
// own order with IsRelay false).
func bufferRelayed(c *Client, order meshtypes.TransferOrder, createdAt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions[order.OrderID.String()] = &meshtypes.BufferedTransaction{
		Order:              order,
		SignaturesReceived: make(map[string][]byte),
		SignaturesRequired: 2,
		CreatedAt:          createdAt,
		Status:             meshtypes.StatusBuffered,
		IsRelay:            true,
		RelayMetadata: &meshtypes.RelayMetadata{
			OriginAddress: meshtypes.Address{NodeID: order.Sender},
			TTL:           8,
			HopPath:       []string{order.Sender},
		},
	}
}

func TestRetryLoopDropsExpiredRelayedTransaction(t *testing.T) {
	c, _, sender := newTestClient(t, 2)
	fixedNow := time.Now()
	c.Now = func() time.Time { return fixedNow }

	order := meshtypes.TransferOrder{OrderID: uuid.New(), Sender: "someone-else", Recipient: "bob", TTLSeconds: 60}
	bufferRelayed(c, order, float64(fixedNow.Unix()))
	initialSends := len(sender.got)

	c.Now = func() time.Time { return fixedNow.Add(200 * time.Second) }
	c.retryOnce(100 * time.Second)

	if len(c.Buffered()) != 0 {
		t.Error("expected the aged-out relayed transaction to be dropped from the buffer")
	}
	if len(sender.got) != initialSends {
		t.Error("expected no retry flood once the relayed transaction is dropped for age")
	}
}

// A client's own order must keep being re-injected past maxAge: only
// relay-carried bundles expire (spec §4.G/§7).
func TestRetryLoopNeverDropsOwnOrderRegardlessOfAge(t *testing.T) {
	c, _, sender := newTestClient(t, 2)
	fixedNow := time.Now()
	c.Now = func() time.Time { return fixedNow }

	bt := c.Transfer("bob", "tok", 100, 0, 60)
	orderID := bt.Order.OrderID.String()
	initialSends := len(sender.got)

	c.Now = func() time.Time { return fixedNow.Add(200 * time.Second) }
	c.retryOnce(100 * time.Second)

	if _, ok := c.Buffered()[orderID]; !ok {
		t.Error("expected a client's own still-unfinalized order to remain buffered past maxAge")
	}
	if len(sender.got) <= initialSends {
		t.Error("expected retryOnce to keep re-flooding the client's own order past maxAge")
	}
}

func TestRetryLoopResubmitsLiveTransactions(t *testing.T) {
	c, _, sender := newTestClient(t, 2)
	fixedNow := time.Now()
	c.Now = func() time.Time { return fixedNow }

	c.Transfer("bob", "tok", 100, 0, 60)
	before := len(sender.got)

	c.Now = func() time.Time { return fixedNow.Add(5 * time.Second) }
	c.retryOnce(time.Hour)

	if len(sender.got) <= before {
		t.Error("expected retryOnce to re-flood a still-live buffered transaction")
	}
}
