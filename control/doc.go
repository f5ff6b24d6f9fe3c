// Package control
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime introspection layer: point-in-time snapshots of scheduler,
// stack-pool, and timer accounting, plus a named debug-probe registry
// for ad-hoc inspection.
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
