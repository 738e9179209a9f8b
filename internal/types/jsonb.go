package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Compile-time interface assertions for the JSON text columns.
// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*MachineNameMap)(nil)
	_ driver.Valuer = MachineNameMap(nil)
	_ sql.Scanner   = (*MemoryMap)(nil)
	_ driver.Valuer = MemoryMap(nil)
	_ sql.Scanner   = (*OperatingSystemDetails)(nil)
	_ driver.Valuer = OperatingSystemDetails{}
	_ sql.Scanner   = (*AssemblyVersion)(nil)
	_ driver.Valuer = AssemblyVersion{}
	_ sql.Scanner   = (*TypeDescription)(nil)
	_ driver.Valuer = TypeDescription{}
)

// scanJSONText decodes a JSON column value into dest. Both the text and
// bytea representations returned by drivers are accepted.
func scanJSONText(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("json column: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// valueJSONText encodes v as a JSON string for a text column. The columns
// are declared text rather than jsonb so the stored document is returned
// byte-for-byte.
func valueJSONText(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// MarshalJSONText is the exported form of valueJSONText for call sites that
// bind a value to a string column without a dedicated Valuer.
func MarshalJSONText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", NewAppError(ErrCodeInternalSerialization, fmt.Sprintf("failed to encode %T as JSON", v), err)
	}
	return string(b), nil
}

func (m *MachineNameMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	return scanJSONText(m, value)
}

func (m MachineNameMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return valueJSONText(map[MachineNameKind]string(m))
}

func (m *MemoryMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	return scanJSONText(m, value)
}

func (m MemoryMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return valueJSONText(map[MachineMemoryKind]decimal.Decimal(m))
}

func (o *OperatingSystemDetails) Scan(value any) error {
	return scanJSONText(o, value)
}

func (o OperatingSystemDetails) Value() (driver.Value, error) {
	return valueJSONText(o)
}

func (v *AssemblyVersion) Scan(value any) error {
	return scanJSONText(v, value)
}

func (v AssemblyVersion) Value() (driver.Value, error) {
	return valueJSONText(v)
}

func (t *TypeDescription) Scan(value any) error {
	return scanJSONText(t, value)
}

func (t TypeDescription) Value() (driver.Value, error) {
	return valueJSONText(t)
}
