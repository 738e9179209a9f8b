package types

import (
	"strings"
)

// UnknownMachineName replaces a missing or literal "null" machine name.
const UnknownMachineName = "Unknown"

// nullLiteral is how absent values arrive from producers that stringify
// nil before sending.
const nullLiteral = "null"

// TypeDescription identifies the Go type that emitted an event. It is stored
// as JSON in event_source.calling_type_json and never interpreted.
type TypeDescription struct {
	Namespace             string `json:"namespace"`
	Name                  string `json:"name"`
	AssemblyQualifiedName string `json:"assembly_qualified_name,omitempty"`
}

// EventTelemetrySource identifies where an event came from. Sources are
// de-duplicated in the event_source table; they are never queued on their
// own.
type EventTelemetrySource struct {
	MachineName        string           `json:"machine_name" validate:"notblank"`
	ProcessName        *string          `json:"process_name,omitempty"`
	ProcessFileVersion *string          `json:"process_file_version,omitempty"`
	CallingMethod      *string          `json:"calling_method,omitempty"`
	CallingType        *TypeDescription `json:"calling_type,omitempty"`
	StackTrace         *string          `json:"stack_trace,omitempty"`
}

// UnknownEventSource is attributed to events whose producer supplied no
// source. Migrations seed it with the nil UUID.
func UnknownEventSource() EventTelemetrySource {
	return EventTelemetrySource{MachineName: UnknownMachineName}
}

// Validate requires a machine name.
func (s EventTelemetrySource) Validate() error {
	return ValidateStruct(s)
}

// SourceIdentity is the normalized form of a source used for matching: the
// literal "null" collapses to absent, and an absent machine name becomes
// UnknownMachineName. Two sources with equal identities resolve to the same
// event_source row.
type SourceIdentity struct {
	MachineName        string
	ProcessName        *string
	ProcessFileVersion *string
	CallingMethod      *string
	StackTrace         *string
	CallingTypeJSON    *string
}

// Identity normalizes the source. The calling type is encoded to JSON here
// so the same text is used for matching and for storage.
func (s EventTelemetrySource) Identity() (SourceIdentity, error) {
	id := SourceIdentity{
		MachineName:        s.MachineName,
		ProcessName:        normalizeNull(s.ProcessName),
		ProcessFileVersion: normalizeNull(s.ProcessFileVersion),
		CallingMethod:      normalizeNull(s.CallingMethod),
		StackTrace:         normalizeNull(s.StackTrace),
	}
	if strings.TrimSpace(id.MachineName) == "" || id.MachineName == nullLiteral {
		id.MachineName = UnknownMachineName
	}
	if s.CallingType != nil {
		text, err := MarshalJSONText(s.CallingType)
		if err != nil {
			return SourceIdentity{}, err
		}
		id.CallingTypeJSON = &text
	}
	return id, nil
}

// Key flattens the identity into a single comparable string. Absent values
// are encoded distinctly from empty strings. The result contains no NUL
// bytes, so it can be bound as PostgreSQL text.
func (id SourceIdentity) Key() string {
	var b strings.Builder
	b.WriteString(id.MachineName)
	for _, p := range []*string{id.ProcessName, id.ProcessFileVersion, id.CallingMethod, id.StackTrace, id.CallingTypeJSON} {
		b.WriteByte(0x1f)
		if p == nil {
			b.WriteByte(0x1e)
			continue
		}
		b.WriteByte(0x1d)
		b.WriteString(*p)
	}
	return b.String()
}

func normalizeNull(p *string) *string {
	if p == nil || *p == nullLiteral {
		return nil
	}
	v := *p
	return &v
}
