package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"ursend/internal/metrics"
	"ursend/internal/session"
	"ursend/util"
)

// SendMode dispatches one or more scripts to a controller, one at a
// time, through a Session.  Host and Port are kept as the text the
// operator supplied; every dispatch validates them afresh.
type SendMode struct {
	Session *session.Session
	Host    string
	Port    string

	// Files are read in order and each becomes one dispatch; "-" is
	// stdin.  Inline, if non-nil, is sent as a single script even when
	// empty.  With neither, stdin is read as one script.
	Files  []string
	Inline *string

	Stats   bool
	Metrics *metrics.Collector
	Logger  *util.Logger

	// Stdin/Stderr default to os.Stdin/os.Stderr when nil.
	Stdin  io.Reader
	Stderr io.Writer
}

type script struct {
	name string
	text string
}

func (m *SendMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *SendMode) stderr() io.Writer {
	if m.Stderr != nil {
		return m.Stderr
	}
	return os.Stderr
}

// Run reads every script up front, then sends them in order.  A failed
// dispatch does not stop the remaining ones; cancelling ctx does.
func (m *SendMode) Run(ctx context.Context) error {
	defer m.Session.Close()

	scripts, err := m.load()
	if err != nil {
		return err
	}

	var failed, rejected int
	for _, s := range scripts {
		if ctx.Err() != nil {
			break
		}
		m.Logger.Verbose("dispatching %s (%d characters)", s.name, len(s.text))

		out, err := m.Session.Send(ctx, m.Host, m.Port, s.text)
		switch {
		case err != nil:
			rejected++
			m.Logger.Error("%s: %v", s.name, err)
		case !out.OK():
			failed++
			m.Logger.Debug("%s", out)
		default:
			m.Logger.Debug("%s", out)
		}
	}

	if m.Stats {
		fmt.Fprintln(m.stderr(), m.Metrics.JSON())
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if failed+rejected > 0 {
		return fmt.Errorf("%d of %d scripts not delivered", failed+rejected, len(scripts))
	}
	return nil
}

func (m *SendMode) load() ([]script, error) {
	if m.Inline != nil {
		return []script{{name: "inline script", text: *m.Inline}}, nil
	}

	files := m.Files
	if len(files) == 0 {
		files = []string{"-"}
	}

	out := make([]script, 0, len(files))
	readStdin := false
	for _, f := range files {
		var (
			data []byte
			err  error
			name = f
		)
		if f == "-" {
			if readStdin {
				return nil, fmt.Errorf("stdin given more than once")
			}
			readStdin = true
			name = "stdin"
			data, err = io.ReadAll(m.stdin())
		} else {
			data, err = os.ReadFile(f)
		}
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		out = append(out, script{name: name, text: string(data)})
	}
	return out, nil
}
