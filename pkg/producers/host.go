package producers

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	cload "github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/netbox-metrics/pkg/logger"
	"github.com/netbox-metrics/pkg/metrics"
)

// HostStats 运行 exporter 的主机的 CPU、负载与内存
func HostStats() metrics.Producer {
	return metrics.FromSlice(func(ctx context.Context) ([]metrics.Sample, error) {
		usage, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return nil, fmt.Errorf("get cpu usage failed: %w", err)
		}
		if len(usage) == 0 {
			return nil, fmt.Errorf("get cpu usage failed: no data")
		}
		out := []metrics.Sample{
			metrics.NewSample("netbox_host_cpu_usage_ratio", "Host CPU usage ratio (0-1)", usage[0]/100),
		}

		// 部分平台不支持负载/内存，只告警不中断
		load, err := cload.AvgWithContext(ctx)
		if err != nil {
			logger.Warn("failed to get CPU load", zap.Error(err))
		} else {
			out = append(out,
				metrics.NewSample("netbox_host_load1", "Host 1-minute load average", load.Load1),
				metrics.NewSample("netbox_host_load5", "Host 5-minute load average", load.Load5),
				metrics.NewSample("netbox_host_load15", "Host 15-minute load average", load.Load15),
			)
		}

		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			logger.Warn("failed to get memory stats", zap.Error(err))
		} else {
			out = append(out, metrics.NewSample("netbox_host_memory_used_ratio", "Host memory used ratio (0-1)", vm.UsedPercent/100))
		}
		return out, nil
	})
}
