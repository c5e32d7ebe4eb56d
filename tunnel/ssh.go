package tunnel

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "ursend/internal/errors"
	"ursend/util"
)

// DefaultConnTimeout bounds the TCP connect plus SSH handshake.
const DefaultConnTimeout = 10 * time.Second

// SSHConfig holds everything needed to dial an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// Addr returns the gateway's "host:port".
func (c *SSHConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSHTunnel implements [Tunnel] over one SSH client connection,
// forwarding each Dial as a direct-tcpip channel.  A nil client means
// the tunnel is down.
type SSHTunnel struct {
	config *SSHConfig
	logger *util.Logger

	mu     sync.RWMutex
	client *ssh.Client
}

// NewSSHTunnel fills in the gateway defaults and returns an unconnected
// tunnel.
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = DefaultConnTimeout
	}
	return &SSHTunnel{config: cfg, logger: logger}
}

// Connect reaches the gateway and authenticates.  Both the TCP connect
// and the handshake are bounded by ConnTimeout and by ctx.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	cfg := t.config
	fail := func(op string, err error) error {
		return ncerr.WrapSSH(op, cfg.Host, cfg.Port, err)
	}

	auth, err := BuildAuthMethods(cfg)
	if err != nil {
		return fail("auth", err)
	}
	verify, err := hostKeyCallback(cfg)
	if err != nil {
		return fail("hostkey", err)
	}

	addr := cfg.Addr()
	t.logger.Debug("connecting to %s as %s", addr, cfg.User)

	d := net.Dialer{Timeout: cfg.ConnTimeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fail("dial", err)
	}

	client, err := t.handshake(ctx, raw, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: verify,
		Timeout:         cfg.ConnTimeout,
	})
	if err != nil {
		raw.Close()
		return fail("handshake", err)
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	go t.watch(client)
	return nil
}

// handshake runs the SSH handshake on raw.  ssh.NewClientConn takes no
// context, so a deadline and an AfterFunc close stand in for one.
func (t *SSHTunnel) handshake(ctx context.Context, raw net.Conn, addr string, cc *ssh.ClientConfig) (*ssh.Client, error) {
	raw.SetDeadline(time.Now().Add(t.config.ConnTimeout)) //nolint:errcheck
	stop := context.AfterFunc(ctx, func() { raw.Close() })
	conn, chans, reqs, err := ssh.NewClientConn(raw, addr, cc)
	stop()
	if err != nil {
		return nil, err
	}
	raw.SetDeadline(time.Time{}) //nolint:errcheck
	return ssh.NewClient(conn, chans, reqs), nil
}

// Dial opens a forwarded connection to address on the gateway's side.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return nil, ncerr.ErrNotConnected
	}

	t.logger.Debug("forwarding %s %s", network, address)
	return client.DialContext(ctx, network, address)
}

// Close tears the gateway connection down.  Closing an unconnected
// tunnel is a no-op.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// IsAlive reports whether the gateway connection is still up.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client != nil
}

// watch waits for client to drop and marks the tunnel down, unless it
// has already been replaced or closed.
func (t *SSHTunnel) watch(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.client = nil
	}
	t.mu.Unlock()

	t.logger.Debug("connection to %s closed: %v", t.config.Addr(), err)
}
