package ports

import "context"

// MemorySampler reports the share of physical memory in use, in percent (0-100).
type MemorySampler interface {
	MemoryLoadPercent(ctx context.Context) (float64, error)
}

// MemoryPressureResponder reacts to memory pressure transitions.
// Callbacks run on the monitor goroutine and should return quickly.
type MemoryPressureResponder interface {
	OnHighMemoryPressure()
	OnNormalMemoryPressure()
}
