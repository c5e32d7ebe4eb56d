package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the URSEND_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("URSEND_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("URSEND_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envInt("URSEND_ROBOT"); v > 0 {
		cfg.RobotID = v
	}
	if v := os.Getenv("URSEND_SUBNET"); v != "" {
		cfg.Subnet = v
	}
	if v := envDuration("URSEND_TIMEOUT"); v > 0 {
		cfg.Timeout = v
	}
	if envBool("URSEND_NEWLINE") {
		cfg.Newline = true
	}
	if v := os.Getenv("URSEND_REPLACE_NON_ASCII"); v != "" {
		cfg.Replacement = v
	}

	// SSH tunnel
	if v := os.Getenv("URSEND_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("URSEND_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("URSEND_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("URSEND_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("URSEND_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("URSEND_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool("URSEND_STATS") {
		cfg.Stats = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts a Go duration ("1500ms") or whole seconds ("3").
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return 0
}
