//go:build !linux

package service

// lowerThreadPriority is a no-op where per-thread priorities are not exposed.
func lowerThreadPriority() error {
	return nil
}
