package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"ursend/util"
)

// ListenMode stands in for a controller: it accepts connections,
// reads each one to EOF and prints what arrived.  With KeepOpen=true
// it serves connections until ctx is cancelled; otherwise it handles
// one connection and returns.
type ListenMode struct {
	Address  string // ":port"
	KeepOpen bool
	Timeout  time.Duration // per-connection read deadline, 0 for none
	Logger   *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer

	mu sync.Mutex // serialises writes to Stdout
}

func (m *ListenMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run listens on Address and prints every received script.
func (m *ListenMode) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.Address, err)
	}
	defer ln.Close()

	m.Logger.Info("listening on %s", ln.Addr())

	// Shut the listener down when the context expires.
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		m.Logger.Verbose("connection from %s", conn.RemoteAddr())

		if !m.KeepOpen {
			return m.serveConn(conn)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.serveConn(conn); err != nil {
				m.Logger.Warn("%v", err)
			}
		}()
	}
}

func (m *ListenMode) serveConn(conn net.Conn) error {
	defer conn.Close()

	if m.Timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(m.Timeout)) //nolint:errcheck
	}

	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp

	var body []byte
	for {
		n, err := conn.Read(buf)
		body = append(body, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read from %s after %d bytes: %w", conn.RemoteAddr(), len(body), err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.stdout()
	fmt.Fprintf(w, "--- %d bytes from %s ---\n", len(body), conn.RemoteAddr())
	w.Write(body) //nolint:errcheck
	if len(body) > 0 && body[len(body)-1] != '\n' {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "--- end ---")
	return nil
}
