package perfcounter

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/shopspring/decimal"

	"telemetry/internal/types"
)

const (
	CategoryProcessor   = "Processor"
	CategoryMemory      = "Memory"
	CategorySystem      = "System"
	CategoryLogicalDisk = "LogicalDisk"
	CategoryProcess     = "Process"

	totalInstance = "_Total"
)

var (
	percentMin = decimal.NewFromInt(-1)
	percentMax = decimal.NewFromInt(101)
	bytesPerMb = decimal.NewFromInt(1 << 20)
)

func percentDescription(category, counter string, instance *string) types.PerformanceCounterDescription {
	return types.PerformanceCounterDescription{
		Category:    category,
		Counter:     counter,
		Instance:    instance,
		ExpectedMin: &percentMin,
		ExpectedMax: &percentMax,
	}
}

// DefaultCounters returns the gopsutil-backed host counters plus the
// counters of the current process. diskPath selects the volume for the free
// space counter.
func DefaultCounters(diskPath string) []Counter {
	if diskPath == "" {
		diskPath = "/"
	}
	pid := int32(os.Getpid())
	procName := fmt.Sprintf("%d", pid)

	return []Counter{
		{
			Description: percentDescription(CategoryProcessor, "% Processor Time", types.StringPtr(totalInstance)),
			Read: func(ctx context.Context) (decimal.Decimal, error) {
				pct, err := cpu.PercentWithContext(ctx, 0, false)
				if err != nil {
					return decimal.Zero, err
				}
				if len(pct) == 0 {
					return decimal.Zero, fmt.Errorf("cpu percent: no data")
				}
				return decimal.NewFromFloat(pct[0]).Round(2), nil
			},
		},
		{
			Description: types.PerformanceCounterDescription{Category: CategoryMemory, Counter: "Available MBytes"},
			Read: func(ctx context.Context) (decimal.Decimal, error) {
				vm, err := mem.VirtualMemoryWithContext(ctx)
				if err != nil {
					return decimal.Zero, err
				}
				return decimal.NewFromInt(int64(vm.Available)).Div(bytesPerMb).Round(0), nil
			},
		},
		{
			Description: percentDescription(CategoryMemory, "% Committed Bytes In Use", nil),
			Read: func(ctx context.Context) (decimal.Decimal, error) {
				vm, err := mem.VirtualMemoryWithContext(ctx)
				if err != nil {
					return decimal.Zero, err
				}
				return decimal.NewFromFloat(vm.UsedPercent).Round(2), nil
			},
		},
		{
			Description: types.PerformanceCounterDescription{Category: CategorySystem, Counter: "Processor Queue Length"},
			Read: func(ctx context.Context) (decimal.Decimal, error) {
				avg, err := load.AvgWithContext(ctx)
				if err != nil {
					return decimal.Zero, err
				}
				return decimal.NewFromFloat(avg.Load1).Round(2), nil
			},
		},
		{
			Description: percentDescription(CategoryLogicalDisk, "% Free Space", types.StringPtr(diskPath)),
			Read: func(ctx context.Context) (decimal.Decimal, error) {
				usage, err := disk.UsageWithContext(ctx, diskPath)
				if err != nil {
					return decimal.Zero, err
				}
				return decimal.NewFromInt(100).Sub(decimal.NewFromFloat(usage.UsedPercent)).Round(2), nil
			},
		},
		{
			Description: types.PerformanceCounterDescription{Category: CategoryProcess, Counter: "Working Set", Instance: types.StringPtr(procName)},
			Read: func(ctx context.Context) (decimal.Decimal, error) {
				p, err := process.NewProcessWithContext(ctx, pid)
				if err != nil {
					return decimal.Zero, err
				}
				info, err := p.MemoryInfoWithContext(ctx)
				if err != nil {
					return decimal.Zero, err
				}
				return decimal.NewFromInt(int64(info.RSS)), nil
			},
		},
		{
			Description: types.PerformanceCounterDescription{Category: CategoryProcess, Counter: "Thread Count", Instance: types.StringPtr(procName)},
			Read: func(ctx context.Context) (decimal.Decimal, error) {
				p, err := process.NewProcessWithContext(ctx, pid)
				if err != nil {
					return decimal.Zero, err
				}
				n, err := p.NumThreadsWithContext(ctx)
				if err != nil {
					return decimal.Zero, err
				}
				return decimal.NewFromInt(int64(n)), nil
			},
		},
	}
}
