// Package simhost provides an in-memory fake Transport and Prober so
// end-to-end mesh scenarios (spec §8 S1-S6) can be built and tested
// without real sockets or ICMP.
package simhost

import (
	"sync"
	"time"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
	"github.com/HuyPHD2024-2027/meshpay/internal/wire"
)

// Network is a shared medium connecting a set of Links by node ID.
// Reachable pairs are declared explicitly, modelling the unidirectional
// and partitioned links a real mesh can have (spec §4.C rationale for
// requiring a reachability probe).
type Network struct {
	mu    sync.Mutex
	links map[string]*Link
	// reachable[a][b] reports whether a datagram sent by a can be received
	// by b -- intentionally asymmetric.
	reachable map[string]map[string]bool
}

// NewNetwork returns an empty shared medium.
func NewNetwork() *Network {
	return &Network{
		links:     make(map[string]*Link),
		reachable: make(map[string]map[string]bool),
	}
}

// SetReachable declares whether datagrams from srcNodeID reach
// dstNodeID. Both directions must be set independently.
func (n *Network) SetReachable(srcNodeID, dstNodeID string, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reachable[srcNodeID] == nil {
		n.reachable[srcNodeID] = make(map[string]bool)
	}
	n.reachable[srcNodeID][dstNodeID] = ok
}

// FullyConnect marks every declared node pair as mutually reachable.
func (n *Network) FullyConnect(nodeIDs ...string) {
	for _, a := range nodeIDs {
		for _, b := range nodeIDs {
			if a == b {
				continue
			}
			n.SetReachable(a, b, true)
		}
	}
}

func (n *Network) isReachable(src, dst string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reachable[src][dst]
}

// NewLink creates a Link for nodeID, registered with the shared network
// under that key so other links can address it by dst.NodeID.
func (n *Network) NewLink(nodeID string) *Link {
	l := &Link{nodeID: nodeID, net: n, inbox: make(chan wire.Message, 256)}
	n.mu.Lock()
	n.links[nodeID] = l
	n.mu.Unlock()
	return l
}

// Link is a per-node Transport backed by the shared Network.
type Link struct {
	nodeID string
	net    *Network
	inbox  chan wire.Message
}

// Send delivers msg to dst if the network currently marks dst as
// reachable from this link's node; otherwise it is silently dropped,
// matching best-effort delivery over an opportunistic medium.
func (l *Link) Send(msg wire.Message, dst meshtypes.Address) bool {
	if !l.net.isReachable(l.nodeID, dst.NodeID) {
		return true // best-effort: an unreachable send is not a caller error
	}
	l.net.mu.Lock()
	peer, ok := l.net.links[dst.NodeID]
	l.net.mu.Unlock()
	if !ok {
		return true
	}
	select {
	case peer.inbox <- msg:
	default:
	}
	return true
}

// Broadcast delivers msg to every other registered link reachable from
// this one, ignoring broadcastIP/port (there is no real network layer).
func (l *Link) Broadcast(msg wire.Message, broadcastIP string, port int) bool {
	l.net.mu.Lock()
	targets := make([]string, 0, len(l.net.links))
	for id := range l.net.links {
		if id != l.nodeID {
			targets = append(targets, id)
		}
	}
	l.net.mu.Unlock()
	for _, id := range targets {
		l.net.mu.Lock()
		peer := l.net.links[id]
		l.net.mu.Unlock()
		if !l.net.isReachable(l.nodeID, id) {
			continue
		}
		select {
		case peer.inbox <- msg:
		default:
		}
	}
	return true
}

// Recv blocks up to timeout for the next inbound message.
func (l *Link) Recv(timeout time.Duration) (*wire.Message, bool) {
	select {
	case m := <-l.inbox:
		return &m, true
	case <-time.After(timeout):
		return nil, false
	}
}

// Close is a no-op; the link's inbox is garbage collected with it.
func (l *Link) Close() error { return nil }

// Prober is a fake reachability prober backed by the same Network
// adjacency used for Send/Broadcast, so admission in tests matches the
// medium's declared topology.
type Prober struct {
	Self string
	Net  *Network
}

// Probe reports whether ip (used here as a bare node ID, since simhost
// has no real IP layer) is reachable from Self.
func (p Prober) Probe(ip string, _ time.Duration) bool {
	return p.Net.isReachable(p.Self, ip)
}
