// Package system reads host resource usage.
package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

// MemorySampler reports physical memory usage through gopsutil.
type MemorySampler struct{}

// NewMemorySampler creates a sampler.
func NewMemorySampler() *MemorySampler {
	return &MemorySampler{}
}

// MemoryLoadPercent returns the share of physical memory in use.
func (s *MemorySampler) MemoryLoadPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading virtual memory: %w", err)
	}
	return vm.UsedPercent, nil
}

// Verify interface implementation
var _ ports.MemorySampler = (*MemorySampler)(nil)
