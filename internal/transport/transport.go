// Package transport opens the outbound TCP connection a script is
// written to.  A dispatch does not care whether that connection goes
// straight to the controller or through an SSH jump host; both are a
// Dialer.
package transport

import (
	"context"
	"net"
	"time"

	"ursend/tunnel"
	"ursend/util"
)

// Dialer opens outbound TCP connections to a robot controller.
type Dialer interface {
	// Dial connects to address ("host:port").  The connect phase must
	// honour ctx.
	Dial(ctx context.Context, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// Options selects and parameterises a Dialer.
type Options struct {
	Timeout   time.Duration
	LocalPort int               // source port for direct connections (0 = ephemeral)
	Tunnel    *tunnel.SSHConfig // nil for a direct connection
}

// New returns the Dialer described by opts.
func New(opts Options, logger *util.Logger) Dialer {
	if opts.Tunnel != nil {
		return NewSSHDialer(opts.Tunnel, logger)
	}
	return &TCPDialer{Timeout: opts.Timeout, LocalPort: opts.LocalPort}
}
