// Package diagnostics samples machine, process and sibling binary facts
// into a DiagnosticsTelemetry snapshot.
package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/shopspring/decimal"

	"telemetry/internal/types"
)

// netBiosNameLimit is the longest NetBIOS computer name.
const netBiosNameLimit = 15

var bytesPerGb = decimal.NewFromInt(1 << 30)

// ProcessInfo is what the collector needs to know about the running process.
type ProcessInfo struct {
	Name           string
	FilePath       string
	RunningAsAdmin bool
}

// Source reads host facts. The gopsutil-backed implementation is returned by
// SystemSource; tests supply their own.
type Source interface {
	Host(ctx context.Context) (*host.InfoStat, error)
	VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error)
	LogicalCPUs(ctx context.Context) (int, error)
	Process(ctx context.Context) (ProcessInfo, error)
	// LookupFQDN resolves the host's fully qualified name. An empty result
	// means it has none.
	LookupFQDN(ctx context.Context, hostname string) (string, error)
}

// Collector builds diagnostics snapshots of the current process.
type Collector struct {
	source         Source
	clock          types.Clock
	productVersion string
	logger         *slog.Logger
}

// NewCollector creates a Collector. productVersion is recorded as the
// process product version; when empty the module version from the build
// info is used.
func NewCollector(source Source, clock types.Clock, productVersion string, logger *slog.Logger) *Collector {
	if source == nil {
		source = SystemSource()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{source: source, clock: clock, productVersion: productVersion, logger: logger}
}

// Collect samples the machine, the process and the binaries beside it.
// Missing optional facts (FQDN, swap) are logged and left out.
func (c *Collector) Collect(ctx context.Context) (*types.DiagnosticsTelemetry, error) {
	sampled := c.clock.Now().UTC()

	machine, err := c.machine(ctx)
	if err != nil {
		return nil, err
	}

	proc, err := c.source.Process(ctx)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to read process details", err)
	}
	fileVersion := moduleVersion()
	productVersion := c.productVersion
	if productVersion == "" {
		productVersion = fileVersion
	}
	processDetails := types.ProcessDetails{
		Name:           proc.Name,
		FilePath:       proc.FilePath,
		FileVersion:    fileVersion,
		ProductVersion: productVersion,
		RunningAsAdmin: proc.RunningAsAdmin,
	}

	var assemblies []types.AssemblyDetails
	if proc.FilePath != "" {
		paths, err := SiblingAssemblyFilePaths(proc.FilePath)
		if err != nil {
			c.logger.WarnContext(ctx, "failed to list sibling binaries", "path", proc.FilePath, "error", err)
		}
		assemblies = make([]types.AssemblyDetails, 0, len(paths))
		for _, p := range paths {
			assemblies = append(assemblies, DescribeAssembly(p))
		}
	}

	return types.NewDiagnosticsTelemetry(sampled, machine, processDetails, assemblies), nil
}

func (c *Collector) machine(ctx context.Context) (types.MachineDetails, error) {
	info, err := c.source.Host(ctx)
	if err != nil {
		return types.MachineDetails{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to read host info", err)
	}
	vm, err := c.source.VirtualMemory(ctx)
	if err != nil {
		return types.MachineDetails{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to read memory info", err)
	}
	cpus, err := c.source.LogicalCPUs(ctx)
	if err != nil {
		return types.MachineDetails{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to read processor count", err)
	}

	names := types.MachineNameMap{}
	if info.Hostname != "" {
		names[types.MachineNameResolvedLocalhostName] = info.Hostname
		names[types.MachineNameNetBiosName] = netBiosName(info.Hostname)
		fqdn, err := c.source.LookupFQDN(ctx, info.Hostname)
		if err != nil {
			c.logger.DebugContext(ctx, "fqdn lookup failed", "hostname", info.Hostname, "error", err)
		} else if fqdn != "" {
			names[types.MachineNameFullyQualifiedDomainName] = fqdn
		}
	}

	memory := types.MemoryMap{
		types.MachineMemoryTotalPhysical:     toGb(vm.Total),
		types.MachineMemoryAvailablePhysical: toGb(vm.Available),
	}
	swap, err := c.source.SwapMemory(ctx)
	if err != nil {
		c.logger.DebugContext(ctx, "swap info unavailable", "error", err)
	} else {
		memory[types.MachineMemoryTotalVirtual] = toGb(vm.Total + swap.Total)
		memory[types.MachineMemoryAvailableVirtual] = toGb(vm.Available + swap.Free)
	}

	platform := info.Platform
	if platform == "" {
		platform = info.OS
	}
	version := info.PlatformVersion
	if version == "" {
		version = info.KernelVersion
	}

	return types.MachineDetails{
		MachineNameKindToNameMap: names,
		ProcessorCount:           cpus,
		MemoryKindToValueInGbMap: memory,
		OperatingSystemIs64Bit:   is64Bit(info.KernelArch),
		OperatingSystem:          types.OperatingSystemDetails{Platform: platform, Version: version},
		RuntimeVersion:           runtime.Version(),
	}, nil
}

func toGb(b uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(b)).Div(bytesPerGb).Round(2)
}

func netBiosName(hostname string) string {
	short, _, _ := strings.Cut(hostname, ".")
	short = strings.ToUpper(short)
	if len(short) > netBiosNameLimit {
		short = short[:netBiosNameLimit]
	}
	return short
}

func is64Bit(arch string) bool {
	switch arch {
	case "x86_64", "amd64", "aarch64", "arm64", "ppc64le", "ppc64", "s390x", "riscv64", "mips64", "loong64":
		return true
	}
	return strings.HasSuffix(arch, "64")
}

func moduleVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}
	return bi.Main.Version
}

// systemSource reads facts through gopsutil.
type systemSource struct{}

// SystemSource returns the gopsutil-backed Source for the current host and
// process.
func SystemSource() Source { return systemSource{} }

func (systemSource) Host(ctx context.Context) (*host.InfoStat, error) {
	return host.InfoWithContext(ctx)
}

func (systemSource) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (systemSource) SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error) {
	return mem.SwapMemoryWithContext(ctx)
}

func (systemSource) LogicalCPUs(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}

func (systemSource) Process(ctx context.Context) (ProcessInfo, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("open own process: %w", err)
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("process name: %w", err)
	}
	exe, err := p.ExeWithContext(ctx)
	if err != nil {
		// Some platforms hide the executable path; fall back to argv[0].
		exe, _ = os.Executable()
	}
	if exe != "" {
		exe, _ = filepath.Abs(exe)
	}

	admin := false
	if uids, err := p.UidsWithContext(ctx); err == nil && len(uids) > 1 {
		admin = uids[1] == 0
	}
	return ProcessInfo{Name: name, FilePath: exe, RunningAsAdmin: admin}, nil
}

func (systemSource) LookupFQDN(ctx context.Context, hostname string) (string, error) {
	return lookupFQDN(ctx, hostname)
}
