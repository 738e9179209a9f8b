package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MachineNameKind identifies one of the names a host answers to.
type MachineNameKind string

const (
	MachineNameFullyQualifiedDomainName MachineNameKind = "FullyQualifiedDomainName"
	MachineNameNetBiosName              MachineNameKind = "NetBiosName"
	MachineNameResolvedLocalhostName    MachineNameKind = "ResolvedLocalhostName"
)

// machineNamePreference is the lookup order for CanonicalMachineName.
var machineNamePreference = []MachineNameKind{
	MachineNameFullyQualifiedDomainName,
	MachineNameNetBiosName,
	MachineNameResolvedLocalhostName,
}

// MachineMemoryKind identifies a memory figure reported in gigabytes.
type MachineMemoryKind string

const (
	MachineMemoryTotalPhysical     MachineMemoryKind = "TotalPhysical"
	MachineMemoryAvailablePhysical MachineMemoryKind = "AvailablePhysical"
	MachineMemoryTotalVirtual      MachineMemoryKind = "TotalVirtual"
	MachineMemoryAvailableVirtual  MachineMemoryKind = "AvailableVirtual"
)

// MachineNameMap is stored as JSON in machine_details.machine_name_map_json.
type MachineNameMap map[MachineNameKind]string

// MemoryMap is stored as JSON in machine_details.memory_map_json.
type MemoryMap map[MachineMemoryKind]decimal.Decimal

// OperatingSystemDetails is stored as JSON in machine_details.operating_system_json.
type OperatingSystemDetails struct {
	Platform    string `json:"platform"`
	Version     string `json:"version"`
	ServicePack string `json:"service_pack,omitempty"`
}

// MachineDetails describes the host a diagnostics snapshot was taken on.
type MachineDetails struct {
	MachineNameKindToNameMap MachineNameMap         `json:"machine_name_kind_to_name_map"`
	ProcessorCount           int                    `json:"processor_count"`
	MemoryKindToValueInGbMap MemoryMap              `json:"memory_kind_to_value_in_gb_map"`
	OperatingSystemIs64Bit   bool                   `json:"operating_system_is_64_bit"`
	OperatingSystem          OperatingSystemDetails `json:"operating_system"`
	RuntimeVersion           string                 `json:"runtime_version"`
}

// CanonicalMachineName returns the most specific name available.
func (m MachineDetails) CanonicalMachineName() (string, error) {
	for _, kind := range machineNamePreference {
		if name, ok := m.MachineNameKindToNameMap[kind]; ok && name != "" {
			return name, nil
		}
	}
	return "", NewAppErrorWithDetails(ErrCodeMissingData,
		"machine details carry no usable machine name", nil,
		map[string]any{"map": "machine_name_kind_to_name_map"},
	)
}

// TotalPhysicalMemoryInGb returns the TotalPhysical entry of the memory map.
func (m MachineDetails) TotalPhysicalMemoryInGb() (decimal.Decimal, error) {
	v, ok := m.MemoryKindToValueInGbMap[MachineMemoryTotalPhysical]
	if !ok {
		return decimal.Zero, NewAppErrorWithDetails(ErrCodeMissingData,
			fmt.Sprintf("memory map has no %s entry", MachineMemoryTotalPhysical), nil,
			map[string]any{"map": "memory_kind_to_value_in_gb_map", "key": string(MachineMemoryTotalPhysical)},
		)
	}
	return v, nil
}

// ProcessDetails describes the process a diagnostics snapshot was taken in.
type ProcessDetails struct {
	Name           string `json:"name"`
	FilePath       string `json:"file_path"`
	FileVersion    string `json:"file_version"`
	ProductVersion string `json:"product_version"`
	RunningAsAdmin bool   `json:"running_as_admin"`
}

// AssemblyVersion is stored as JSON in assembly_details.version_json.
type AssemblyVersion struct {
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Build    int `json:"build"`
	Revision int `json:"revision"`
}

func (v AssemblyVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// AssemblyDetails describes a binary loaded alongside the process.
type AssemblyDetails struct {
	Name             string          `json:"name"`
	Version          AssemblyVersion `json:"version"`
	FilePath         string          `json:"file_path"`
	FrameworkVersion string          `json:"framework_version"`
}

// DiagnosticsTelemetry is a point-in-time snapshot of machine, process, and
// sibling assembly facts. It is not modified after construction.
type DiagnosticsTelemetry struct {
	SampledUTC               time.Time         `json:"sampled_utc"`
	MachineDetails           MachineDetails    `json:"machine_details"`
	ProcessDetails           ProcessDetails    `json:"process_details"`
	ProcessSiblingAssemblies []AssemblyDetails `json:"process_sibling_assemblies"`
}

// NewDiagnosticsTelemetry copies the assembly slice so later changes by the
// caller are not observed.
func NewDiagnosticsTelemetry(
	sampledUTC time.Time,
	machine MachineDetails,
	process ProcessDetails,
	assemblies []AssemblyDetails,
) *DiagnosticsTelemetry {
	copied := make([]AssemblyDetails, len(assemblies))
	copy(copied, assemblies)
	return &DiagnosticsTelemetry{
		SampledUTC:               sampledUTC,
		MachineDetails:           machine,
		ProcessDetails:           process,
		ProcessSiblingAssemblies: copied,
	}
}

// Equal compares assemblies in order. Two snapshots listing the same
// assemblies in a different order are not equal.
func (d *DiagnosticsTelemetry) Equal(other *DiagnosticsTelemetry) bool {
	if d == nil || other == nil {
		return d == other
	}
	if !d.SampledUTC.Equal(other.SampledUTC) ||
		!d.MachineDetails.equal(other.MachineDetails) ||
		d.ProcessDetails != other.ProcessDetails ||
		len(d.ProcessSiblingAssemblies) != len(other.ProcessSiblingAssemblies) {
		return false
	}
	for i := range d.ProcessSiblingAssemblies {
		if d.ProcessSiblingAssemblies[i] != other.ProcessSiblingAssemblies[i] {
			return false
		}
	}
	return true
}

func (m MachineDetails) equal(o MachineDetails) bool {
	if m.ProcessorCount != o.ProcessorCount ||
		m.OperatingSystemIs64Bit != o.OperatingSystemIs64Bit ||
		m.OperatingSystem != o.OperatingSystem ||
		m.RuntimeVersion != o.RuntimeVersion ||
		len(m.MachineNameKindToNameMap) != len(o.MachineNameKindToNameMap) ||
		len(m.MemoryKindToValueInGbMap) != len(o.MemoryKindToValueInGbMap) {
		return false
	}
	for k, v := range m.MachineNameKindToNameMap {
		if ov, ok := o.MachineNameKindToNameMap[k]; !ok || ov != v {
			return false
		}
	}
	for k, v := range m.MemoryKindToValueInGbMap {
		if ov, ok := o.MemoryKindToValueInGbMap[k]; !ok || !ov.Equal(v) {
			return false
		}
	}
	return true
}
