// Package identity provides the two concrete ClientId representations
// netsync uses: a netcode-style numeric id assigned by a connect token,
// and a locally generated id for loopback/offline sessions.
package identity

import "github.com/rs/xid"

// ClientId identifies one connected peer for the lifetime of its
// connection.
type ClientId interface {
	String() string
	id() // unexported to close the interface to this package's two types
}

// NetcodeClientId is the numeric client id a netcode-style connect token
// assigns.
type NetcodeClientId uint64

func (NetcodeClientId) id() {}
func (c NetcodeClientId) String() string {
	return "netcode:" + uint64ToString(uint64(c))
}

// LocalClientId is generated locally for HostServer-mode loopback clients
// and for any session that never goes through netcode connect-token
// issuance.
type LocalClientId xid.ID

func (LocalClientId) id() {}
func (c LocalClientId) String() string { return "local:" + xid.ID(c).String() }

// NewLocalClientId generates a fresh globally-sortable LocalClientId,
// grounded on the rs/xid generator used for request ids in the
// conniver/sockstats Prometheus exporters.
func NewLocalClientId() LocalClientId {
	return LocalClientId(xid.New())
}

func uint64ToString(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
