// Package config defines the runtime configuration for ursend and the
// layers it is assembled from: defaults, an optional YAML file,
// URSEND_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "ursend/internal/errors"
	"ursend/internal/realtime"
)

// Config holds every tuneable for a single ursend run.
type Config struct {
	// ── Destination ──────────────────────────────────────────────────
	Host      string
	Port      int // 0 selects the primary or dashboard default
	RobotID   int // -r: derive Host from the robot number
	Subnet    string
	Timeout   time.Duration
	LocalPort int // -p: source port, or the listen port with -l

	// ── Script ───────────────────────────────────────────────────────
	Files       []string // each file is one dispatch; "-" is stdin
	Script      string   // -e: inline script text
	ScriptSet   bool     // -e was given, so an empty Script is still sent
	Newline     bool
	Replacement string // substitute for non-ASCII characters; "" is strict
	Dashboard   string // -d: dashboard command instead of a script

	// ── Realtime state ───────────────────────────────────────────────
	State string // --state: "all" or one realtime field name

	// ── Listen sink ──────────────────────────────────────────────────
	Listen   bool
	KeepOpen bool

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose    int
	Stats      bool
	ConfigFile string
}

// ApplyDefaults fills every unset field that has a default.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 && !c.Listen {
		switch {
		case c.State != "":
			c.Port = DefaultRealtimePort
		case c.Dashboard != "":
			c.Port = DefaultDashboardPort
		default:
			c.Port = DefaultPrimaryPort
		}
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultConnTimeout
	}
	if c.Subnet == "" {
		c.Subnet = DefaultRobotSubnet
	}
	if c.TunnelEnabled && c.TunnelPort == 0 {
		c.TunnelPort = DefaultSSHPort
	}
}

// HasScript reports whether an inline script was supplied, including an
// empty one.
func (c *Config) HasScript() bool { return c.ScriptSet || c.Script != "" }

// ReplacementByte returns the substitute byte, or 0 for strict encoding.
func (c *Config) ReplacementByte() byte {
	if c.Replacement == "" {
		return 0
	}
	return c.Replacement[0]
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "ur@cell-gateway:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q - expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ResolveTunnel parses TunnelSpec, if set, into the Tunnel* fields.
func (c *Config) ResolveTunnel() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "use -T ur@gateway or -T ur@gateway:2222",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Host and port text are not checked here; the endpoint validator
// reports those per dispatch.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return &ncerr.ConfigError{
			Field: "timeout", Value: c.Timeout, Message: "must be positive",
			Hint: "use -w 2 for a two second timeout",
		}
	}
	if c.Replacement != "" && (len(c.Replacement) != 1 || c.Replacement[0] > 127) {
		return &ncerr.ConfigError{
			Field: "replace-non-ascii", Value: c.Replacement,
			Message: "must be a single ASCII character",
		}
	}

	if c.Listen {
		if c.LocalPort == 0 {
			return &ncerr.ConfigError{
				Field: "port", Message: "listen mode requires a port",
				Hint: fmt.Sprintf("use -l -p %d to stand in for a controller", DefaultPrimaryPort),
			}
		}
		if c.TunnelEnabled {
			return &ncerr.ConfigError{Field: "tunnel", Message: "cannot be combined with listen mode"}
		}
		if c.State != "" {
			return &ncerr.ConfigError{Field: "state", Value: c.State, Message: "cannot be combined with listen mode"}
		}
		return nil
	}

	if c.Host == "" && c.RobotID == 0 {
		return &ncerr.ConfigError{
			Field: "host", Message: "a controller address is required",
			Hint: "give it as the first argument, or select a cell with -r",
		}
	}
	if c.Host != "" && c.RobotID != 0 {
		return &ncerr.ConfigError{Field: "robot", Value: c.RobotID, Message: "cannot be combined with an explicit host"}
	}
	if c.RobotID < 0 {
		return &ncerr.ConfigError{Field: "robot", Value: c.RobotID, Message: "must be positive"}
	}
	if c.State != "" {
		return c.validateState()
	}
	if c.Dashboard != "" && (c.HasScript() || len(c.Files) > 0) {
		return &ncerr.ConfigError{
			Field: "dashboard", Value: c.Dashboard,
			Message: "cannot be combined with a script",
		}
	}
	if c.HasScript() && len(c.Files) > 0 {
		return &ncerr.ConfigError{
			Field: "script", Message: "cannot be combined with --file",
			Hint: "put the inline script in a file, or drop -f",
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required"}
	}
	return nil
}

// validateState checks a --state request.  It reads from the
// controller, so nothing that sends may accompany it.
func (c *Config) validateState() error {
	if c.State != StateAll && !realtime.Known(c.State) {
		return &ncerr.ConfigError{
			Field: "state", Value: c.State, Message: "unknown realtime field",
			Hint: "one of: " + strings.Join(realtime.Names(), ", "),
		}
	}
	if c.Dashboard != "" || c.HasScript() || len(c.Files) > 0 {
		return &ncerr.ConfigError{
			Field: "state", Value: c.State,
			Message: "cannot be combined with a script or dashboard command",
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required"}
	}
	return nil
}
