// Package meshtypes holds the wire-stable data model shared by every
// MeshPay component: addresses, transfer orders, responses, confirmations,
// relay bundles and the node-local state that owns them.
package meshtypes

import "fmt"

// Role classifies a node's position in the network.
type Role string

const (
	RoleAuthority Role = "AUTHORITY"
	RoleClient    Role = "CLIENT"
	RoleGateway   Role = "GATEWAY"
)

// Address is the stable identity plus current transport locator of a node.
// NodeID is used for deduplication and hop-path checks; IP/Port may change
// across restarts without changing identity.
type Address struct {
	NodeID string `json:"node_id"`
	IP     string `json:"ip"`
	Port   uint16 `json:"port"`
	Role   Role   `json:"role"`
}

func (a Address) String() string {
	return fmt.Sprintf("%s@%s:%d", a.NodeID, a.IP, a.Port)
}

// DialString returns the ip:port pair suitable for net.Dial / net.ResolveUDPAddr.
func (a Address) DialString() string {
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}
