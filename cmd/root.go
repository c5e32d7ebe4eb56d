// Package cmd wires up the CLI flags and hands the resulting
// configuration to the core builder.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"ursend/config"
	"ursend/internal/core"
	"ursend/internal/endpoint"
	"ursend/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X ursend/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// options are the flags that steer the CLI itself rather than a run.
type options struct {
	showVersion bool
	showHelp    bool
	dryRun      bool
}

// Execute parses args and runs the appropriate ursend mode.
func Execute(ctx context.Context, args []string) error {
	cfg, opts, fs, err := parseArgs(args)
	if err != nil {
		return err
	}

	if opts.showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if opts.showVersion {
		fmt.Printf("ursend %s\n", version)
		return nil
	}

	if err := finalize(cfg, fs.Args()); err != nil {
		return err
	}
	if opts.dryRun {
		printConfig(os.Stdout, cfg)
		return nil
	}

	logger := util.NewLogger(cfg.Verbose)
	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// parseArgs layers the config file, the environment and the flags, in
// that order, onto a fresh Config.
func parseArgs(args []string) (*config.Config, *options, *flag.FlagSet, error) {
	cfg := &config.Config{}
	if path := configPath(args); path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return nil, nil, nil, err
		}
	}
	config.LoadFromEnv(cfg)

	opts := &options{}
	fs := flag.NewFlagSet("ursend", flag.ContinueOnError)

	// Flag defaults are the values loaded so far, so an absent flag
	// leaves them alone.

	// ── destination ──────────────────────────────────────────────
	fs.IntVarP(&cfg.RobotID, "robot", "r", cfg.RobotID, "Robot cell number; host becomes <subnet>.(10*N+3)")
	fs.StringVar(&cfg.Subnet, "subnet", cfg.Subnet, "Subnet used with -r (default "+config.DefaultRobotSubnet+")")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Local port: source port, or the listen port with -l")

	var timeoutSec float64
	fs.Float64VarP(&timeoutSec, "timeout", "w", cfg.Timeout.Seconds(), "Connect and send timeout in seconds (default 2)")

	// ── script ───────────────────────────────────────────────────
	fs.StringArrayVarP(&cfg.Files, "file", "f", cfg.Files, "Script file to send; repeatable, - for stdin")
	fs.StringVarP(&cfg.Script, "script", "e", cfg.Script, "Send this script text")
	fs.BoolVarP(&cfg.Newline, "newline", "N", cfg.Newline, "Append a trailing newline if missing")
	fs.StringVar(&cfg.Replacement, "replace-non-ascii", cfg.Replacement, "Replace non-ASCII characters instead of refusing to send")
	fs.Lookup("replace-non-ascii").NoOptDefVal = config.DefaultReplacement
	fs.StringVarP(&cfg.Dashboard, "dashboard", "d", cfg.Dashboard, "Send a dashboard command (port 29999), e.g. pause")

	// ── realtime state ───────────────────────────────────────────
	fs.StringVar(&cfg.State, "state", cfg.State, "Print one realtime state frame (port 30003): all fields, or the named one")
	fs.Lookup("state").NoOptDefVal = config.StateAll

	// ── listen sink ──────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Listen and print received scripts")
	fs.BoolVarP(&cfg.KeepOpen, "keep-open", "k", cfg.KeepOpen, "Accept multiple connections (with -l)")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Send through an SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	verbose := cfg.Verbose
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print dispatch statistics as JSON on exit")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Validate the configuration, print it and exit")

	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}

	if !fs.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if fs.Changed("script") {
		cfg.ScriptSet = true
	}
	if fs.Changed("timeout") {
		cfg.Timeout = time.Duration(timeoutSec * float64(time.Second))
	}
	return cfg, opts, fs, nil
}

// finalize applies positional arguments, resolves the tunnel, fills
// defaults and validates.
func finalize(cfg *config.Config, positional []string) error {
	if err := parsePositional(cfg, positional); err != nil {
		return err
	}
	if err := cfg.ResolveTunnel(); err != nil {
		return err
	}
	cfg.ApplyDefaults()
	return cfg.Validate()
}

// configPath finds --config before the full flag set exists, since the
// file's values become the other flags' defaults.
func configPath(args []string) string {
	fs := flag.NewFlagSet("ursend-config", flag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	var path string
	fs.StringVar(&path, "config", "", "")
	_ = fs.Parse(args)
	return path
}

// ── helpers ──────────────────────────────────────────────────────────

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		if len(remaining) > 0 {
			return fmt.Errorf("listen mode takes no arguments (use -l -p PORT)")
		}
		return nil
	}

	switch len(remaining) {
	case 0: // host from -r, the environment or a config file
	case 1:
		cfg.Host = remaining[0]
	case 2:
		cfg.Host = remaining[0]
		port, err := endpoint.ParsePort(remaining[1])
		if err != nil {
			return err
		}
		cfg.Port = port
	default:
		return fmt.Errorf("too many arguments (use --help for usage)")
	}
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	switch {
	case cfg.Listen:
		fmt.Fprintf(w, "mode:     listen on :%d (keep open: %t)\n", cfg.LocalPort, cfg.KeepOpen)
		return
	case cfg.State != "":
		fmt.Fprintf(w, "mode:     state %s\n", cfg.State)
	case cfg.Dashboard != "":
		fmt.Fprintf(w, "mode:     dashboard %q\n", cfg.Dashboard)
	default:
		fmt.Fprintln(w, "mode:     send")
	}
	if cfg.RobotID > 0 {
		fmt.Fprintf(w, "robot:    %d on %s\n", cfg.RobotID, cfg.Subnet)
	} else {
		fmt.Fprintf(w, "host:     %s\n", cfg.Host)
	}
	fmt.Fprintf(w, "port:     %d\n", cfg.Port)
	fmt.Fprintf(w, "timeout:  %s\n", cfg.Timeout)
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "tunnel:   %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
	if cfg.ConfigFile != "" {
		fmt.Fprintf(w, "config:   %s\n", cfg.ConfigFile)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `ursend - send URScript to a robot controller v%s

Usage:
  ursend [options] <host> [port]              Send stdin (port defaults to %d)
  ursend -f prog.script [-f ...] <host>       Send files, one dispatch each
  ursend -r 4 -e 'textmsg("hi")'              Send to robot cell 4
  ursend -d pause <host>                      Dashboard command
  ursend --state[=field] <host>               Read realtime state
  ursend -l -p <port> [-k]                    Listen and print scripts

Options:
`, version, config.DefaultPrimaryPort)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  ursend -N -f pick.script 192.168.10.13
  cat place.script | ursend 192.168.10.13 30002
  ursend -T ur@cell-gateway -f pick.script 192.168.10.13
  ursend -r 4 --state=tool_pose
  ursend -l -p 30002 -k                       Bench test without a robot
`)
}
