package core

import (
	"fmt"
	"os"
	"strconv"

	"ursend/config"
	"ursend/internal/endpoint"
	"ursend/internal/metrics"
	"ursend/internal/payload"
	"ursend/internal/realtime"
	"ursend/internal/session"
	"ursend/internal/transport"
	"ursend/tunnel"
	"ursend/util"
)

// Build constructs the appropriate Mode from the given configuration.
// cfg is expected to have had ApplyDefaults and Validate run on it.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	switch {
	case cfg.Listen:
		return buildListen(cfg, logger), nil
	case cfg.State != "":
		return buildState(cfg, logger)
	}
	return buildSend(cfg, logger)
}

// ── mode builders ────────────────────────────────────────────────────

func buildListen(cfg *config.Config, logger *util.Logger) Mode {
	return &ListenMode{
		Address:  fmt.Sprintf(":%d", cfg.LocalPort),
		KeepOpen: cfg.KeepOpen,
		Logger:   logger.Named("listen"),
	}
}

func buildState(cfg *config.Config, logger *util.Logger) (Mode, error) {
	host, err := resolveHost(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &StateMode{
		Reader: &realtime.Reader{
			Dialer:  buildDialer(cfg, logger),
			Timeout: cfg.Timeout,
			Logger:  logger.Named("realtime"),
		},
		Host:   host,
		Port:   strconv.Itoa(cfg.Port),
		Field:  cfg.State,
		Logger: logger,
	}, nil
}

func buildSend(cfg *config.Config, logger *util.Logger) (Mode, error) {
	host, err := resolveHost(cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	sess := session.New(session.Options{
		Dialer:  buildDialer(cfg, logger),
		Timeout: cfg.Timeout,
		Encoder: buildEncoder(cfg),
		Mirror:  os.Stdout,
		Metrics: m,
		Logger:  logger.Named("session"),
	})

	mode := &SendMode{
		Session: sess,
		Host:    host,
		Port:    strconv.Itoa(cfg.Port),
		Files:   cfg.Files,
		Stats:   cfg.Stats,
		Metrics: m,
		Logger:  logger,
	}
	switch {
	case cfg.Dashboard != "":
		cmd := cfg.Dashboard
		mode.Inline = &cmd
	case cfg.HasScript():
		text := cfg.Script
		mode.Inline = &text
	}
	return mode, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// resolveHost returns the controller address text: the configured host,
// or the address derived from the robot number.
func resolveHost(cfg *config.Config, logger *util.Logger) (string, error) {
	if cfg.RobotID <= 0 {
		return cfg.Host, nil
	}
	ep, err := endpoint.FromRobotID(cfg.RobotID, cfg.Subnet, cfg.Port)
	if err != nil {
		return "", fmt.Errorf("robot %d: %w", cfg.RobotID, err)
	}
	logger.Verbose("robot %d is %s", cfg.RobotID, ep)
	return ep.Host.String(), nil
}

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	opts := transport.Options{
		Timeout:   cfg.Timeout,
		LocalPort: cfg.LocalPort,
	}
	if cfg.TunnelEnabled {
		opts.Tunnel = &tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
		}
	}
	return transport.New(opts, logger.Named("transport"))
}

// buildEncoder selects the text-to-bytes policy.  Dashboard commands
// are line oriented and always get their newline.
func buildEncoder(cfg *config.Config) payload.Encoder {
	return payload.Encoder{
		Replacement:   cfg.ReplacementByte(),
		AppendNewline: cfg.Newline || cfg.Dashboard != "",
	}
}
