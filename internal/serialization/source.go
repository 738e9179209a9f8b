package serialization

import (
	"strings"

	json "github.com/goccy/go-json"

	"telemetry/internal/types"
)

// contextDocument is the JSON stored in a raw queue item's Context column.
type contextDocument struct {
	EventSource *types.EventTelemetrySource `json:"event_source,omitempty"`
}

// EncodeSource renders src as a Context document.
func EncodeSource(src types.EventTelemetrySource) (string, error) {
	if err := src.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(contextDocument{EventSource: &src})
	if err != nil {
		return "", malformed("failed to encode event source", err)
	}
	return string(data), nil
}

// DecodeSource reads the event source from a Context document. It reports
// false when the document carries none, including for an empty string or
// "{}".
func DecodeSource(context string) (types.EventTelemetrySource, bool, error) {
	trimmed := strings.TrimSpace(context)
	if trimmed == "" || trimmed == types.EmptyJSONObject {
		return types.EventTelemetrySource{}, false, nil
	}

	var doc contextDocument
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return types.EventTelemetrySource{}, false, malformed("context is not a valid document", err)
	}
	if doc.EventSource == nil {
		return types.EventTelemetrySource{}, false, nil
	}
	return *doc.EventSource, true, nil
}
