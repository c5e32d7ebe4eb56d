// Package core is the orchestration layer.  It composes the session,
// transports and encoder into complete operational modes and provides
// a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	endpoint, payload, transport  →  dispatch  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of ursend (send scripts
// or act as a listening sink).  Each mode owns its full lifecycle from
// setup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
