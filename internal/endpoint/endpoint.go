// Package endpoint validates the destination a script is sent to.
//
// Validation is pure: it never resolves names and never touches the
// network.  A destination that passes is an immutable Endpoint built
// fresh for each dispatch.
package endpoint

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	ncerr "ursend/internal/errors"
	"ursend/util"
)

// DefaultRobotSubnet is the lab subnet used by robot-id addressing.
const DefaultRobotSubnet = "192.168.10"

// Endpoint is a validated IPv4 TCP destination.
type Endpoint struct {
	Host netip.Addr
	Port int
}

// String returns "host:port".
func (e Endpoint) String() string {
	return util.FormatAddr(e.Host.String(), e.Port)
}

// AddrPort returns the endpoint as a netip.AddrPort.
func (e Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(e.Host, uint16(e.Port))
}

// IsZero reports whether e is the zero Endpoint.
func (e Endpoint) IsZero() bool { return !e.Host.IsValid() && e.Port == 0 }

// Validate parses hostText and portText into an Endpoint.  The host is
// checked first; the first failing field is reported as a
// *errors.ValidationError.
func Validate(hostText, portText string) (Endpoint, error) {
	host, err := ParseHost(hostText)
	if err != nil {
		return Endpoint{}, err
	}
	port, err := ParsePort(portText)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{Host: host, Port: port}, nil
}

// ParseHost accepts exactly four dot-separated decimal octets, each
// 0-255.  Leading zeros are rejected, as netip does, so "010.0.0.1"
// cannot be misread as octal.
func ParseHost(text string) (netip.Addr, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return netip.Addr{}, &ncerr.ValidationError{Field: "host", Kind: ncerr.MissingHost}
	}
	addr, err := netip.ParseAddr(text)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, &ncerr.ValidationError{Field: "host", Kind: ncerr.MalformedHost, Value: text}
	}
	return addr, nil
}

// ParsePort accepts a base-10 integer in 1..65535.
func ParsePort(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, &ncerr.ValidationError{Field: "port", Kind: ncerr.MissingPort}
	}
	for _, r := range strings.TrimPrefix(text, "-") {
		if r < '0' || r > '9' {
			return 0, &ncerr.ValidationError{Field: "port", Kind: ncerr.NonNumericPort, Value: text}
		}
	}
	if text == "-" {
		return 0, &ncerr.ValidationError{Field: "port", Kind: ncerr.NonNumericPort, Value: text}
	}
	port, err := strconv.Atoi(text)
	if err != nil || port < 1 || port > 65535 {
		// Atoi only fails here on overflow, which is out of range too.
		return 0, &ncerr.ValidationError{Field: "port", Kind: ncerr.PortOutOfRange, Value: text}
	}
	return port, nil
}

// FromRobotID derives the address subnet.(10*id+3) used by the lab's
// numbered robot cells and validates it together with port.  An empty
// subnet means DefaultRobotSubnet.
func FromRobotID(id int, subnet string, port int) (Endpoint, error) {
	if subnet == "" {
		subnet = DefaultRobotSubnet
	}
	if id < 0 {
		return Endpoint{}, &ncerr.ValidationError{Field: "host", Kind: ncerr.MalformedHost, Value: fmt.Sprintf("robot %d", id)}
	}
	return Validate(fmt.Sprintf("%s.%d", subnet, 10*id+3), strconv.Itoa(port))
}
