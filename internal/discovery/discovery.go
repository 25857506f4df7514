// Package discovery implements neighbor discovery (spec §4.C/§4.D):
// periodic broadcast beacons plus a reachability probe gate before a
// beacon's sender is admitted to the neighbor table.
package discovery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
	"github.com/HuyPHD2024-2027/meshpay/internal/neighbor"
	"github.com/HuyPHD2024-2027/meshpay/internal/wire"
)

// Broadcaster is the subset of transport.UDP that discovery needs for
// sending beacons -- separated so tests can inject a fake without pulling
// in real sockets.
type Broadcaster interface {
	Broadcast(msg wire.Message, broadcastIP string, port int) bool
}

// Service runs the beacon and listen loops for one node.
type Service struct {
	Self        meshtypes.Address
	BroadcastIP string
	Port        int
	Interval    time.Duration
	Timeout     time.Duration

	Table     *neighbor.Table
	Broadcast Broadcaster
	Prober    Prober

	Capabilities []string
	Log          *logrus.Entry
}

// NewService wires default dependencies (PingProber, std logger) around
// the required fields.
func NewService(self meshtypes.Address, tbl *neighbor.Table, bc Broadcaster, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		Self:      self,
		Table:     tbl,
		Broadcast: bc,
		Prober:    PingProber{},
		Log:       log.WithField("component", "discovery"),
	}
}

// Run blocks, pruning stale neighbors and sending a beacon every Interval,
// until ctx is cancelled. It is meant to be launched in its own goroutine
// by the node. Incoming beacons are not read here -- the node's single
// receive loop dispatches PEER_DISCOVERY messages to HandleBeacon, since
// only one goroutine may safely call Transport.Recv on a shared socket.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneStale()
			s.sendBeacon()
		}
	}
}

func (s *Service) pruneStale() {
	for _, id := range s.Table.PruneStale() {
		s.Log.WithField("neighbor", id).Info("neighbor evicted: timeout")
	}
}

func (s *Service) sendBeacon() {
	payload, err := wire.MarshalPayload(wire.PeerDiscoveryPayload{
		NodeInfo:            s.Self,
		ServiceCapabilities: s.Capabilities,
	})
	if err != nil {
		s.Log.WithError(err).Warn("marshal beacon payload")
		return
	}
	msg := wire.Message{
		MessageID:   uuid.New(),
		MessageType: wire.PeerDiscovery,
		Sender:      s.Self,
		Timestamp:   float64(time.Now().Unix()),
		Payload:     payload,
	}
	if !s.Broadcast.Broadcast(msg, s.BroadcastIP, s.Port) {
		s.Log.Warn("beacon broadcast failed")
	}
}

// HandleBeacon processes one decoded PEER_DISCOVERY message: self-filter,
// reachability probe, then admission. Exported so the node's generic
// receive dispatch loop can feed it beacons received through any path.
func (s *Service) HandleBeacon(msg wire.Message) {
	if msg.Sender.NodeID == s.Self.NodeID {
		return
	}
	if s.Table.Touch(msg.Sender.NodeID) {
		return
	}
	if !s.Prober.Probe(msg.Sender.IP, s.Timeout) {
		s.Log.WithField("neighbor", msg.Sender.NodeID).Debug("reachability probe failed, not admitted")
		return
	}
	s.Table.Insert(meshtypes.PeerInfo{Address: msg.Sender})
	s.Log.WithField("neighbor", msg.Sender.NodeID).Info("neighbor admitted")
}
