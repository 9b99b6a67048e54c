package config

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/vk/benchgrid/internal/ctxlog"
)

// Normalize fills the machine fields a profile left empty: one node, the
// host's logical CPU count per node, and one concurrent run per core.
func (m *Machine) Normalize(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if m.Nodes == 0 {
		m.Nodes = 1
	}
	if m.CoresPerNode == 0 {
		n, err := cpu.CountsWithContext(ctx, true)
		if err != nil || n < 1 {
			logger.Warn("Could not detect CPU count, assuming a single core.", "error", err)
			n = 1
		}
		m.CoresPerNode = n
		logger.Debug("Machine cores_per_node detected.", "cores", n)
	}
	if m.ConcurrentRun == 0 {
		m.ConcurrentRun = m.Slots()
	}
	if m.Nodes < 0 || m.CoresPerNode < 0 || m.ConcurrentRun < 0 {
		return fmt.Errorf("machine description must be positive: %+v", *m)
	}
	return nil
}
