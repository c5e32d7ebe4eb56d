// Package testutil holds loopback helpers shared by ursend's tests.
package testutil

import (
	"encoding/binary"
	"math"
	"net"
	"testing"
)

// FreePort returns a TCP port on 127.0.0.1 that nothing was listening
// on a moment ago.
func FreePort(t testing.TB) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// ServeOnce listens on loopback, writes data to the first connection
// and closes it.  It returns the listener address.
func ServeOnce(t testing.TB, data []byte) *net.TCPAddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write(data) //nolint:errcheck
	}()
	return ln.Addr().(*net.TCPAddr)
}

// RealtimeFrame builds an n-byte realtime frame whose length prefix is
// n and whose k-th 8-byte slot after the prefix holds float64(k).
func RealtimeFrame(n int) []byte {
	frame := make([]byte, n)
	binary.BigEndian.PutUint32(frame[:4], uint32(n))
	for k := 0; 4+8*(k+1) <= n; k++ {
		off := 4 + 8*k
		binary.BigEndian.PutUint64(frame[off:off+8], math.Float64bits(float64(k)))
	}
	return frame
}
