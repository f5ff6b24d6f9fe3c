// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations
// are in affinity_linux.go and affinity_stub.go, guarded by build tags.

package affinity

// Pin binds the calling OS thread to one logical CPU on supported
// platforms. Callers must hold runtime.LockOSThread for the binding to
// stay meaningful. On unsupported platforms returns an error.
func Pin(cpuID int) error {
	return pinPlatform(cpuID)
}
