// Package tunnel routes dispatches through an SSH gateway when the
// robot controller is only reachable from a jump host on the cell
// network.  The implementation is backed by golang.org/x/crypto/ssh.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is a gateway session that forwards TCP connections to hosts
// on the cell network.  *SSHTunnel is the only production
// implementation.
type Tunnel interface {
	// Connect reaches and authenticates to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a forwarded connection to address, as seen from the
	// gateway.  It fails with errors.ErrNotConnected before Connect.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close drops the gateway session.
	Close() error

	// IsAlive reports false once the gateway has hung up.
	IsAlive() bool
}

var _ Tunnel = (*SSHTunnel)(nil)
