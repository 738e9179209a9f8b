package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMachineNameMapValueAndScanRoundTrip(t *testing.T) {
	m := MachineNameMap{
		MachineNameFullyQualifiedDomainName: "node-1.prod.internal",
		MachineNameNetBiosName:              "NODE-1",
	}

	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	text, ok := v.(string)
	if !ok {
		t.Fatalf("Value returned %T, want string", v)
	}

	var got MachineNameMap
	if err := got.Scan(text); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got[MachineNameNetBiosName] != "NODE-1" || len(got) != 2 {
		t.Errorf("scanned map = %v", got)
	}
}

func TestMachineNameMapNilValueIsEmptyObject(t *testing.T) {
	v, err := MachineNameMap(nil).Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "{}" {
		t.Errorf("Value() = %v, want {}", v)
	}
}

func TestMemoryMapKeepsDecimalPrecision(t *testing.T) {
	m := MemoryMap{MachineMemoryTotalPhysical: decimal.RequireFromString("31.874")}

	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var got MemoryMap
	if err := got.Scan([]byte(v.(string))); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !got[MachineMemoryTotalPhysical].Equal(decimal.RequireFromString("31.874")) {
		t.Errorf("TotalPhysical = %s", got[MachineMemoryTotalPhysical])
	}
}

func TestScanJSONTextRejectsUnsupportedType(t *testing.T) {
	var v AssemblyVersion
	if err := v.Scan(42); err == nil {
		t.Fatal("expected error scanning an int")
	}
}

func TestScanJSONTextNil(t *testing.T) {
	var m MemoryMap
	if err := m.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if m != nil {
		t.Errorf("Scan(nil) left %v", m)
	}
}

func TestTypeDescriptionValue(t *testing.T) {
	v, err := TypeDescription{Namespace: "telemetry/internal/drain", Name: "Drainer"}.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	want := `{"namespace":"telemetry/internal/drain","name":"Drainer"}`
	if v != want {
		t.Errorf("Value() = %v, want %s", v, want)
	}
}
