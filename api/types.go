// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import "time"

// ServiceInfo exposes descriptive build- and runtime info for external
// tools (control surface, metrics labels).
type ServiceInfo struct {
	Name       string
	Version    string
	InstanceID string
	StartedAt  time.Time
}

// DefaultStackSize is the default usable stack segment size. Small by
// design; the guard page below the segment turns overflow into an
// immediate fatal fault rather than silent corruption.
const DefaultStackSize = 4 * 1024
