package core

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"ursend/internal/metrics"
	"ursend/internal/session"
	"ursend/internal/testutil"
	"ursend/internal/transport"
	"ursend/util"
)

func collector(t *testing.T) (port string, got <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	ch := make(chan string, 8)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			b, _ := io.ReadAll(c)
			c.Close()
			ch <- string(b)
		}
	}()
	return strconv.Itoa(ln.Addr().(*net.TCPAddr).Port), ch
}

func inline(text string) *string { return &text }

func newSendMode(port string, log io.Writer) *SendMode {
	m := metrics.New()
	return &SendMode{
		Session: session.New(session.Options{
			Dialer:  &transport.TCPDialer{Timeout: time.Second},
			Timeout: time.Second,
			Mirror:  log,
			Metrics: m,
		}),
		Host:    "127.0.0.1",
		Port:    port,
		Metrics: m,
		Logger:  util.Discard(),
		Stderr:  io.Discard,
	}
}

func writeScript(t *testing.T, name, text string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSendMode_Files(t *testing.T) {
	port, got := collector(t)
	var log, stats bytes.Buffer

	m := newSendMode(port, &log)
	m.Files = []string{
		writeScript(t, "one.script", "textmsg(\"one\")\n"),
		writeScript(t, "two.script", "textmsg(\"two\")\n"),
	}
	m.Stats = true
	m.Stderr = &stats

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, want := range []string{"textmsg(\"one\")\n", "textmsg(\"two\")\n"} {
		if p := <-got; p != want {
			t.Errorf("controller got %q, want %q", p, want)
		}
	}
	if n := strings.Count(log.String(), "finished sending"); n != 2 {
		t.Errorf("log has %d finished entries:\n%s", n, log.String())
	}
	if !strings.Contains(stats.String(), `"dispatches": 2`) {
		t.Errorf("stats output:\n%s", stats.String())
	}
}

func TestSendMode_Stdin(t *testing.T) {
	port, got := collector(t)
	m := newSendMode(port, io.Discard)
	m.Stdin = strings.NewReader("popup(\"hi\")\n")

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p := <-got; p != "popup(\"hi\")\n" {
		t.Errorf("controller got %q", p)
	}
}

func TestSendMode_Inline(t *testing.T) {
	port, got := collector(t)
	m := newSendMode(port, io.Discard)
	m.Inline = inline("stop")
	m.Files = []string{"ignored"}

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p := <-got; p != "stop" {
		t.Errorf("controller got %q", p)
	}
}

func TestSendMode_EmptyInline(t *testing.T) {
	port, got := collector(t)
	var log bytes.Buffer
	m := newSendMode(port, &log)
	stdin := strings.NewReader("textmsg(\"not me\")")
	m.Stdin = stdin
	m.Inline = inline("")

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p := <-got; p != "" {
		t.Errorf("controller got %q, want an empty payload", p)
	}
	if stdin.Len() == 0 {
		t.Error("stdin was read although an inline script was given")
	}
	if !strings.Contains(log.String(), "finished sending 0 bytes") {
		t.Errorf("log:\n%s", log.String())
	}
}

func TestSendMode_Refused(t *testing.T) {
	free := testutil.FreePort(t)
	var log bytes.Buffer
	m := newSendMode(strconv.Itoa(free), &log)
	m.Inline = inline("x")

	err := m.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "1 of 1") {
		t.Fatalf("got %v, want a not-delivered error", err)
	}
	if !strings.Contains(log.String(), "ConnectionRefused") {
		t.Errorf("log:\n%s", log.String())
	}
}

func TestSendMode_InvalidHost(t *testing.T) {
	var log bytes.Buffer
	m := newSendMode("30002", &log)
	m.Host = "robot.lab"
	m.Inline = inline("x")

	if err := m.Run(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if strings.Contains(log.String(), "attempting to connect") {
		t.Errorf("invalid host must not dial:\n%s", log.String())
	}
	if !strings.Contains(log.String(), "invalid destination") {
		t.Errorf("log:\n%s", log.String())
	}
}

func TestSendMode_MissingFile(t *testing.T) {
	var log bytes.Buffer
	m := newSendMode("30002", &log)
	m.Files = []string{filepath.Join(t.TempDir(), "nope.script")}

	if err := m.Run(context.Background()); err == nil {
		t.Fatal("expected read error")
	}
	if log.Len() != 0 {
		t.Errorf("nothing should be logged before scripts load:\n%s", log.String())
	}
}

func TestSendMode_StdinTwice(t *testing.T) {
	m := newSendMode("30002", io.Discard)
	m.Stdin = strings.NewReader("")
	m.Files = []string{"-", "-"}
	if err := m.Run(context.Background()); err == nil {
		t.Fatal("reading stdin twice should fail")
	}
}
