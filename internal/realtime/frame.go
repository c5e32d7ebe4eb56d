// Package realtime reads the controller's state from its realtime
// interface.  Once connected, the controller streams one length-prefixed
// frame of big-endian values per control cycle; ursend reads a single
// frame, decodes the fields it knows and hangs up.
package realtime

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	ncerr "ursend/internal/errors"
)

// Port is the realtime interface port.
const Port = 30003

const (
	// MinFrameLen covers every field in the layout.
	MinFrameLen = 740

	// MaxFrameLen rejects a corrupt length prefix before allocating.
	MaxFrameLen = 4096
)

// LengthField names the frame's own size prefix.
const LengthField = "message_length"

type field struct {
	name   string
	offset int
	count  int
}

// layout lists the decoded fields in frame order.  Offsets are bytes
// from the start of the frame, length prefix included.  The gap between
// xyz_accelerometer and tcp_force is unused.
var layout = []field{
	{"time", 4, 1},
	{"target_joints_pos", 12, 6},
	{"target_joints_vel", 60, 6},
	{"target_joints_accel", 108, 6},
	{"target_joints_current", 156, 6},
	{"target_joints_torque", 204, 6},
	{"actual_joints_pos", 252, 6},
	{"actual_joints_vel", 300, 6},
	{"actual_joints_current", 348, 6},
	{"xyz_accelerometer", 396, 3},
	{"tcp_force", 540, 6},
	{"tool_pose", 588, 6},
	{"tool_speed", 636, 6},
	{"joint_temperatures", 692, 6},
}

// Names returns the decodable field names in frame order, starting
// with LengthField.
func Names() []string {
	out := make([]string, 0, len(layout)+1)
	out = append(out, LengthField)
	for _, f := range layout {
		out = append(out, f.name)
	}
	return out
}

// Known reports whether name is a field State can return.
func Known(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}

// State is one decoded frame.
type State struct {
	Length int
	values map[string][]float64
}

// Field returns a copy of the named field's values.  LengthField is
// returned as a single value.
func (s *State) Field(name string) ([]float64, bool) {
	if name == LengthField {
		return []float64{float64(s.Length)}, true
	}
	v, ok := s.values[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), v...), true
}

// WriteTo writes every field as "name v1 v2 ...", one per line, in
// frame order.
func (s *State) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, name := range Names() {
		v, _ := s.Field(name)
		n, err := fmt.Fprintf(w, "%s %s\n", name, FormatValues(v))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// FormatValues renders values space-separated in the shortest form
// that round-trips.
func FormatValues(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// Decode parses a complete frame, length prefix included.  Bytes past
// the last known field are ignored.
func Decode(frame []byte) (*State, error) {
	if len(frame) < MinFrameLen {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ncerr.ErrBadFrame, len(frame), MinFrameLen)
	}

	s := &State{
		Length: int(int32(binary.BigEndian.Uint32(frame[:4]))),
		values: make(map[string][]float64, len(layout)),
	}
	for _, f := range layout {
		v := make([]float64, f.count)
		for i := range v {
			off := f.offset + 8*i
			v[i] = math.Float64frombits(binary.BigEndian.Uint64(frame[off : off+8]))
		}
		s.values[f.name] = v
	}
	return s, nil
}

// ReadFrame reads one length-prefixed frame from r and decodes it.
func ReadFrame(r io.Reader) (*State, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("reading frame length: %w", err)
	}

	n := int(int32(binary.BigEndian.Uint32(hdr[:])))
	if n < MinFrameLen || n > MaxFrameLen {
		return nil, fmt.Errorf("%w: length prefix %d outside %d-%d", ncerr.ErrBadFrame, n, MinFrameLen, MaxFrameLen)
	}

	frame := make([]byte, n)
	copy(frame, hdr[:])
	if _, err := io.ReadFull(r, frame[4:]); err != nil {
		return nil, fmt.Errorf("reading %d-byte frame: %w", n, err)
	}
	return Decode(frame)
}
