// Package node composes the shared mesh plumbing (transport, neighbor
// table, relay engine, discovery) with an optional client and/or
// authority role (spec §5, §9). Roles attach via callback registration on
// the shared relay Engine rather than through inheritance or mixins.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HuyPHD2024-2027/meshpay/internal/authority"
	"github.com/HuyPHD2024-2027/meshpay/internal/client"
	"github.com/HuyPHD2024-2027/meshpay/internal/config"
	"github.com/HuyPHD2024-2027/meshpay/internal/discovery"
	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
	"github.com/HuyPHD2024-2027/meshpay/internal/neighbor"
	"github.com/HuyPHD2024-2027/meshpay/internal/relay"
	"github.com/HuyPHD2024-2027/meshpay/internal/transport"
	"github.com/HuyPHD2024-2027/meshpay/internal/wire"
)

// Node is one mesh participant: the shared plumbing every role needs,
// plus whichever of Client/Authority were attached.
type Node struct {
	Self   meshtypes.Address
	Config config.Config
	Log    *logrus.Entry

	Transport transport.Transport
	Table     *neighbor.Table
	Engine    *relay.Engine
	Discovery *discovery.Service

	Client    *client.Client
	Authority *authority.Authority

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	stats   meshtypes.PerformanceStats
}

// New assembles a node's shared plumbing around a production UDP
// transport bound to cfg.ListenIP/cfg.Port.
func New(cfg config.Config, role meshtypes.Role, log *logrus.Entry) (*Node, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("node_id", cfg.NodeID)

	self := meshtypes.Address{NodeID: cfg.NodeID, IP: cfg.ListenIP, Port: cfg.Port, Role: role}

	tr, err := transport.NewUDP(cfg.ListenIP, int(cfg.Port), log)
	if err != nil {
		return nil, err
	}

	tbl := neighbor.New(cfg.NeighborTimeout)
	engine := relay.New(self, tbl, tr, cfg.DefaultRelayTTL, log)
	engine.SetBufferedMaxAge(cfg.RelayBundleMaxAge)

	disc := discovery.NewService(self, tbl, tr, log)
	disc.BroadcastIP = cfg.BroadcastIP
	disc.Port = cfg.DiscoveryPort
	disc.Interval = cfg.DiscoveryInterval
	disc.Timeout = cfg.TransportTimeout

	n := &Node{
		Self:      self,
		Config:    cfg,
		Log:       log,
		Transport: tr,
		Table:     tbl,
		Engine:    engine,
		Discovery: disc,
	}
	return n, nil
}

// AttachClient wires a payer role to this node, backed by its shared
// relay engine and neighbor-derived committee size.
func (n *Node) AttachClient() *client.Client {
	c := client.New(n.Self.NodeID, n.Self, n.Engine, n.committeeSize, n.Config.QuorumThreshold, n.Log)
	n.Client = c
	return c
}

// AttachAuthority wires a committee-member role to this node.
func (n *Node) AttachAuthority(store *authority.MemoryStore) *authority.Authority {
	a := authority.New(n.Self.NodeID, n.Self, store, n.Engine, n.Log)
	n.Authority = a
	return a
}

func (n *Node) committeeSize() int {
	size := n.Table.Len() + 1 // +1 for self
	if size < 1 {
		size = 1
	}
	return size
}

// Start launches the node's minimum worker set (spec §5): the discovery
// loop and the generic receive-dispatch loop. If a client role is
// attached, its retry loop is also started.
func (n *Node) Start(ctx context.Context) {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.running = true
	n.mu.Unlock()

	go n.Discovery.Run(ctx)
	go n.receiveLoop(ctx)
	if n.Client != nil {
		go n.Client.RetryLoop(ctx, n.Config.RelayBundleMaxAge)
	}
}

// Stop cancels every worker goroutine and closes the transport.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return
	}
	n.running = false
	if n.cancel != nil {
		n.cancel()
	}
	_ = n.Transport.Close()
}

// receiveLoop is the node's single reader of its transport, dispatching
// each decoded message by type. Only one goroutine may call
// Transport.Recv on a shared socket, so every inbound path -- beacons,
// relay bundles -- funnels through here.
func (n *Node) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, ok := n.Transport.Recv(200 * time.Millisecond)
		if !ok || msg == nil {
			continue
		}

		switch msg.MessageType {
		case wire.PeerDiscovery:
			n.Discovery.HandleBeacon(*msg)
			n.Engine.FlushBuffered()
		case wire.MeshRelay:
			var bundle wire.RelayBundle
			if err := wire.UnmarshalPayload(msg.Payload, &bundle); err != nil {
				n.Log.WithError(err).Debug("drop malformed mesh relay envelope")
				continue
			}
			n.Engine.HandleIncoming(bundle)
			n.bumpTransactionCount()
		default:
			n.Log.WithField("message_type", msg.MessageType).Debug("unhandled top-level message type")
		}
	}
}

func (n *Node) bumpTransactionCount() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stats.TransactionCount++
}

// Neighbors returns the current neighbor snapshot for the status surface.
func (n *Node) Neighbors() []meshtypes.PeerInfo {
	return n.Table.Snapshot()
}

// Committee reports the node IDs this node currently treats as committee
// members: its own ID plus every live neighbor's.
func (n *Node) Committee() []string {
	ids := []string{n.Self.NodeID}
	for _, p := range n.Table.Snapshot() {
		ids = append(ids, p.Address.NodeID)
	}
	return ids
}

// BufferedTransactions returns the attached client's buffered transaction
// snapshot, or nil if no client role is attached.
func (n *Node) BufferedTransactions() map[string]meshtypes.BufferedTransaction {
	if n.Client == nil {
		return nil
	}
	return n.Client.Buffered()
}

// Stats returns a copy of the node's performance counters.
func (n *Node) Stats() meshtypes.PerformanceStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}
