package util

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
)

func captured(verbosity int) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(verbosity)
	l.SetOutput(&buf)
	l.SetTimestamps(false)
	return l, &buf
}

func logAll(l *Logger) {
	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Verbose("v")
	l.Debug("d")
}

func TestLogger_Verbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		want      []string
	}{
		{0, []string{"[ERR] e"}},
		{1, []string{"[ERR] e", "[WRN] w", "[INF] i"}},
		{2, []string{"[ERR] e", "[WRN] w", "[INF] i", "[VRB] v"}},
		{3, []string{"[ERR] e", "[WRN] w", "[INF] i", "[VRB] v", "[DBG] d"}},
	}
	for _, tt := range tests {
		l, buf := captured(tt.verbosity)
		logAll(l)

		got := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("verbosity %d: got %q, want %q", tt.verbosity, got, tt.want)
		}
	}
}

func TestLogger_Named(t *testing.T) {
	l, buf := captured(1)
	gw := l.Named("gateway")
	gw.Info("up")
	gw.Named("probe").Warn("slow")
	l.Info("plain")

	want := "[INF] gateway: up\n[WRN] gateway.probe: slow\n[INF] plain\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestLogger_ChildSharesOutput(t *testing.T) {
	l, _ := captured(1)
	child := l.Named("dispatch")

	var redirected bytes.Buffer
	l.SetOutput(&redirected)
	child.Info("sent")

	if redirected.String() != "[INF] dispatch: sent\n" {
		t.Errorf("child wrote %q to the redirected output", redirected.String())
	}
}

func TestLogger_Timestamps(t *testing.T) {
	l, buf := captured(1)
	l.SetTimestamps(true)
	l.Info("dispatch finished")

	re := regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{3} \[INF\] dispatch finished\n$`)
	if !re.MatchString(buf.String()) {
		t.Errorf("unexpected timestamped line %q", buf.String())
	}
}

func TestLogger_DebugTimestampsByDefault(t *testing.T) {
	if !NewLogger(3).sink.timestamps {
		t.Error("debug logger should timestamp")
	}
	if NewLogger(2).sink.timestamps {
		t.Error("verbose logger should not timestamp")
	}
}

func TestLogger_Discard(t *testing.T) {
	l := Discard()
	l.Error("dropped")
	l.Named("x").Error("dropped")
	if l.Level() != LogQuiet || l.Enabled(LogNormal) {
		t.Errorf("discard logger should be quiet, level = %d", l.Level())
	}
}
