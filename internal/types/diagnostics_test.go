package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func sampleMachine() MachineDetails {
	return MachineDetails{
		MachineNameKindToNameMap: MachineNameMap{
			MachineNameNetBiosName:           "NODE-7",
			MachineNameResolvedLocalhostName: "localhost",
		},
		ProcessorCount: 8,
		MemoryKindToValueInGbMap: MemoryMap{
			MachineMemoryTotalPhysical:     decimal.NewFromInt(32),
			MachineMemoryAvailablePhysical: decimal.RequireFromString("12.5"),
		},
		OperatingSystemIs64Bit: true,
		OperatingSystem:        OperatingSystemDetails{Platform: "linux", Version: "6.8.0"},
		RuntimeVersion:         "go1.25.5",
	}
}

func sampleAssemblies() []AssemblyDetails {
	return []AssemblyDetails{
		{Name: "libtelemetry.so", Version: AssemblyVersion{Major: 1, Minor: 2}, FilePath: "/opt/app/libtelemetry.so"},
		{Name: "agent", Version: AssemblyVersion{Major: 3}, FilePath: "/opt/app/agent"},
	}
}

func TestCanonicalMachineNamePreference(t *testing.T) {
	m := sampleMachine()

	name, err := m.CanonicalMachineName()
	if err != nil {
		t.Fatalf("CanonicalMachineName: %v", err)
	}
	if name != "NODE-7" {
		t.Errorf("name = %q, want NetBIOS name when FQDN is absent", name)
	}

	m.MachineNameKindToNameMap[MachineNameFullyQualifiedDomainName] = "node-7.prod.internal"
	if name, _ := m.CanonicalMachineName(); name != "node-7.prod.internal" {
		t.Errorf("name = %q, want FQDN", name)
	}
}

func TestCanonicalMachineNameMissing(t *testing.T) {
	m := MachineDetails{}
	if _, err := m.CanonicalMachineName(); !HasCode(err, ErrCodeMissingData) {
		t.Errorf("err = %v, want %s", err, ErrCodeMissingData)
	}
}

func TestTotalPhysicalMemoryInGb(t *testing.T) {
	m := sampleMachine()
	v, err := m.TotalPhysicalMemoryInGb()
	if err != nil {
		t.Fatalf("TotalPhysicalMemoryInGb: %v", err)
	}
	if !v.Equal(decimal.NewFromInt(32)) {
		t.Errorf("v = %s, want 32", v)
	}

	delete(m.MemoryKindToValueInGbMap, MachineMemoryTotalPhysical)
	if _, err := m.TotalPhysicalMemoryInGb(); !HasCode(err, ErrCodeMissingData) {
		t.Errorf("err = %v, want %s", err, ErrCodeMissingData)
	}
}

func TestNewDiagnosticsTelemetryCopiesAssemblies(t *testing.T) {
	assemblies := sampleAssemblies()
	d := NewDiagnosticsTelemetry(sampled, sampleMachine(), ProcessDetails{Name: "agent"}, assemblies)

	assemblies[0].Name = "changed"
	if d.ProcessSiblingAssemblies[0].Name != "libtelemetry.so" {
		t.Error("snapshot observed a change to the caller's slice")
	}
}

func TestDiagnosticsTelemetryEqualIsOrderSensitive(t *testing.T) {
	process := ProcessDetails{Name: "agent", FilePath: "/opt/app/agent", RunningAsAdmin: false}
	a := NewDiagnosticsTelemetry(sampled, sampleMachine(), process, sampleAssemblies())
	b := NewDiagnosticsTelemetry(sampled, sampleMachine(), process, sampleAssemblies())

	if !a.Equal(b) {
		t.Fatal("identical snapshots compared unequal")
	}

	reversed := sampleAssemblies()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	c := NewDiagnosticsTelemetry(sampled, sampleMachine(), process, reversed)
	if a.Equal(c) {
		t.Error("snapshots with reordered assemblies compared equal")
	}
}

func TestDiagnosticsTelemetryEqualMachineMaps(t *testing.T) {
	process := ProcessDetails{Name: "agent"}
	a := NewDiagnosticsTelemetry(sampled, sampleMachine(), process, nil)

	m := sampleMachine()
	m.MemoryKindToValueInGbMap[MachineMemoryTotalPhysical] = decimal.NewFromInt(64)
	b := NewDiagnosticsTelemetry(sampled, m, process, nil)

	if a.Equal(b) {
		t.Error("snapshots with different memory compared equal")
	}
}

func TestItemKinds(t *testing.T) {
	d := NewDiagnosticsTelemetry(sampled, sampleMachine(), ProcessDetails{}, nil)
	e, _ := NewEventTelemetry(sampled, "Event", nil, nil)

	items := []Item{d, e, NullItem{SampledUTC: sampled}}
	want := []ItemKind{ItemKindDiagnostics, ItemKindEvent, ItemKindNull}
	for i, it := range items {
		if it.Kind() != want[i] {
			t.Errorf("items[%d].Kind() = %s, want %s", i, it.Kind(), want[i])
		}
		if !it.SampledAt().Equal(sampled) {
			t.Errorf("items[%d].SampledAt() = %v", i, it.SampledAt())
		}
	}
}

func TestAggregateItemFlatten(t *testing.T) {
	e1, _ := NewEventTelemetry(sampled, "A", nil, nil)
	e2, _ := NewEventTelemetry(sampled, "B", nil, nil)
	inner, err := NewAggregateItem(sampled, e2, NullItem{})
	if err != nil {
		t.Fatalf("NewAggregateItem: %v", err)
	}
	outer, err := NewAggregateItem(sampled, e1, inner)
	if err != nil {
		t.Fatalf("NewAggregateItem: %v", err)
	}

	leaves := outer.Flatten()
	if len(leaves) != 3 {
		t.Fatalf("Flatten() returned %d leaves, want 3", len(leaves))
	}
	if leaves[0] != Item(e1) || leaves[1] != Item(e2) {
		t.Error("Flatten() did not preserve depth-first order")
	}
}

func TestNewAggregateItemRejectsNil(t *testing.T) {
	if _, err := NewAggregateItem(sampled, nil); !HasCode(err, ErrCodeValidationInvalidValue) {
		t.Errorf("err = %v, want %s", err, ErrCodeValidationInvalidValue)
	}
}
