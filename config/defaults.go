package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultPrimaryPort is the controller's primary interface, which
	// executes any script written to it.
	DefaultPrimaryPort = 30002

	// DefaultDashboardPort accepts one-line dashboard commands
	// ("play", "pause", "stop", ...).
	DefaultDashboardPort = 29999

	// DefaultRealtimePort streams one state frame per control cycle.
	DefaultRealtimePort = 30003

	// StateAll asks --state for every decoded field.
	StateAll = "all"

	// DefaultConnTimeout bounds the connect and the write of a dispatch.
	DefaultConnTimeout = 2 * time.Second

	// MaxConnTimeout is the largest timeout a config file may ask for.
	MaxConnTimeout = 5 * time.Minute

	// DefaultRobotSubnet is the /24 the numbered robot cells live on.
	DefaultRobotSubnet = "192.168.10"

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultReplacement is the substitute byte used when
	// --replace-non-ascii is given without a value.
	DefaultReplacement = "?"
)
