// Package transport implements the MeshPay unicast/broadcast datagram
// layer (spec §4.B). The node pulls inbound messages by calling Recv from
// its own receive loop, so the transport holds no reference back to the
// node (the no-cyclic-reference design note in §9).
package transport

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
	"github.com/HuyPHD2024-2027/meshpay/internal/merrors"
	"github.com/HuyPHD2024-2027/meshpay/internal/wire"
)

// Transport is the minimal send/receive/close surface every higher layer
// depends on. A fake implementation (internal/simhost) satisfies this for
// socket-free end-to-end tests.
type Transport interface {
	Send(msg wire.Message, dst meshtypes.Address) bool
	Recv(timeout time.Duration) (*wire.Message, bool)
	Close() error
}

// UDP is the production Transport: one bound UDP socket used for both
// unicast sends/receives and broadcast beacons.
type UDP struct {
	conn *net.UDPConn
	log  *logrus.Entry
}

// NewUDP binds a UDP socket on listenIP:port. SO_REUSEADDR-equivalent
// behaviour is unavailable via net.ListenUDP on all platforms; callers
// that need rebind-after-crash semantics should retry at the discovery
// layer instead of relying on socket options.
func NewUDP(listenIP string, port int, log *logrus.Entry) (*UDP, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(listenIP), Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, merrors.Wrapf(err, "bind udp %s:%d", listenIP, port)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &UDP{conn: conn, log: log.WithField("component", "transport")}, nil
}

// Send encodes msg and writes it to dst. It never blocks on the caller's
// behalf beyond the OS write buffer and returns false (not an error) on
// any send failure, matching the best-effort delivery model of spec §3.
func (u *UDP) Send(msg wire.Message, dst meshtypes.Address) bool {
	data, err := wire.Encode(msg)
	if err != nil {
		u.log.WithError(err).Warn("encode message for send")
		return false
	}
	addr := &net.UDPAddr{IP: net.ParseIP(dst.IP), Port: int(dst.Port)}
	if _, err := u.conn.WriteToUDP(data, addr); err != nil {
		u.log.WithError(err).WithField("dst", dst.NodeID).Warn("send datagram")
		return false
	}
	return true
}

// Broadcast sends msg to a broadcast or multicast-equivalent address on
// port. Used by discovery beacons only.
func (u *UDP) Broadcast(msg wire.Message, broadcastIP string, port int) bool {
	return u.Send(msg, meshtypes.Address{IP: broadcastIP, Port: uint16(port)})
}

// Recv blocks up to timeout for one datagram and returns the decoded
// Message. Malformed datagrams are dropped silently (spec §7) and Recv
// returns (nil, false) for them exactly as it would for a timeout.
func (u *UDP) Recv(timeout time.Duration) (*wire.Message, bool) {
	buf := make([]byte, 65535)
	if err := u.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, false
	}
	n, _, err := u.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, false
	}
	msg, err := wire.Decode(buf[:n])
	if err != nil {
		u.log.WithError(err).Debug("drop malformed datagram")
		return nil, false
	}
	return &msg, true
}

// LocalPort returns the bound local UDP port.
func (u *UDP) LocalPort() int {
	return u.conn.LocalAddr().(*net.UDPAddr).Port
}

// Close releases the underlying socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}
