// Package errors provides the failure taxonomy for ursend.
//
// Every failure a dispatch can produce is one of three structured
// types: a ValidationError (bad destination text), an EncodingError
// (script text that cannot be sent as ASCII) or a DispatchError (the
// network operation failed).  Each carries a Kind so callers can
// branch without parsing strings.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrBusy         = errors.New("a dispatch is already in progress")
	ErrClosed       = errors.New("session is closed")
	ErrNotConnected = errors.New("not connected")
	ErrTimeout      = errors.New("operation timed out")
	ErrAuthFailed   = errors.New("authentication failed")
	ErrBadFrame     = errors.New("malformed realtime frame")
)

// ── Validation ───────────────────────────────────────────────────────

// ValidationKind names the reason a destination field was rejected.
type ValidationKind int

const (
	MissingHost ValidationKind = iota + 1
	MalformedHost
	MissingPort
	NonNumericPort
	PortOutOfRange
)

func (k ValidationKind) String() string {
	switch k {
	case MissingHost:
		return "MissingHost"
	case MalformedHost:
		return "MalformedHost"
	case MissingPort:
		return "MissingPort"
	case NonNumericPort:
		return "NonNumericPort"
	case PortOutOfRange:
		return "PortOutOfRange"
	default:
		return "Unknown"
	}
}

// ValidationError reports which destination field failed and why.
type ValidationError struct {
	Field string // "host" or "port"
	Kind  ValidationKind
	Value string // the rejected text, verbatim
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingHost:
		return "host: address is required"
	case MalformedHost:
		return fmt.Sprintf("host: %q is not a valid IPv4 address", e.Value)
	case MissingPort:
		return "port: port is required"
	case NonNumericPort:
		return fmt.Sprintf("port: %q is not a number", e.Value)
	case PortOutOfRange:
		return fmt.Sprintf("port: %s out of range 1-65535", e.Value)
	default:
		return fmt.Sprintf("%s: invalid value %q", e.Field, e.Value)
	}
}

// ── Encoding ─────────────────────────────────────────────────────────

// EncodingError reports a character that has no single-byte ASCII
// representation.  Line and Column are 1-based; Offset is the byte
// offset into the original text.
type EncodingError struct {
	Rune   rune
	Offset int
	Line   int
	Column int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("unsupported character %q (U+%04X) at line %d, column %d",
		e.Rune, e.Rune, e.Line, e.Column)
}

// ── Dispatch ─────────────────────────────────────────────────────────

// DispatchKind classifies a failed network operation.
type DispatchKind int

const (
	Unexpected DispatchKind = iota
	ConnectionRefused
	Timeout
	HostUnreachable
	SendFailed
	Cancelled
)

func (k DispatchKind) String() string {
	switch k {
	case ConnectionRefused:
		return "ConnectionRefused"
	case Timeout:
		return "Timeout"
	case HostUnreachable:
		return "HostUnreachable"
	case SendFailed:
		return "SendFailed"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unexpected"
	}
}

// DispatchError represents a failure while connecting to or writing to
// the destination.
type DispatchError struct {
	Kind DispatchKind
	Op   string // "dial" or "write"
	Addr string
	Sent int // bytes confirmed written before the failure
	Err  error
}

func (e *DispatchError) Error() string {
	s := fmt.Sprintf("%s %s: %s", e.Op, e.Addr, e.Kind)
	if e.Op == "write" {
		s += fmt.Sprintf(" after %d bytes", e.Sent)
	}
	if e.Err != nil {
		s += fmt.Sprintf(": %v", e.Err)
	}
	return s
}

func (e *DispatchError) Unwrap() error { return e.Err }

// SSHError represents a failure reaching or authenticating to the SSH
// gateway a dispatch is routed through.
type SSHError struct {
	Op   string // "auth", "hostkey", "handshake"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a DispatchError for op against addr, classifying err.
// Write-phase errors that are not timeouts or cancellations become
// SendFailed.
func Wrap(op, addr string, sent int, err error) *DispatchError {
	kind := Classify(err)
	if op == "write" && (kind == Unexpected || kind == ConnectionRefused || kind == HostUnreachable) {
		kind = SendFailed
	}
	return &DispatchError{Kind: kind, Op: op, Addr: addr, Sent: sent, Err: err}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// Classify maps a network error onto the dispatch taxonomy.
func Classify(err error) DispatchKind {
	if err == nil {
		return Unexpected
	}
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return Cancelled
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, ErrTimeout):
		return Timeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnectionRefused
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return HostUnreachable
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout
	}
	return Unexpected
}

// KindOf returns the DispatchKind carried by err, or Unexpected.
func KindOf(err error) DispatchKind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return Unexpected
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsEncoding reports whether err is an EncodingError.
func IsEncoding(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
