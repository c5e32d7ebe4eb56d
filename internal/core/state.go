package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"ursend/internal/endpoint"
	"ursend/internal/realtime"
	"ursend/util"
)

// StateMode takes one snapshot from the controller's realtime port and
// prints it.  Field "all" prints every decoded field as "name values";
// a single field prints its values alone, ready for a shell pipeline.
type StateMode struct {
	Reader *realtime.Reader
	Host   string
	Port   string
	Field  string
	Logger *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

func (m *StateMode) Run(ctx context.Context) error {
	defer m.Reader.Dialer.Close()

	ep, err := endpoint.Validate(m.Host, m.Port)
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}

	m.Logger.Verbose("reading realtime state from %s", ep)
	st, err := m.Reader.Read(ctx, ep)
	if err != nil {
		return err
	}

	w := m.Stdout
	if w == nil {
		w = os.Stdout
	}
	if m.Field == "" || m.Field == "all" {
		_, err = st.WriteTo(w)
		return err
	}

	v, ok := st.Field(m.Field)
	if !ok {
		return fmt.Errorf("unknown realtime field %q", m.Field)
	}
	_, err = fmt.Fprintln(w, realtime.FormatValues(v))
	return err
}
