package serialization

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"telemetry/internal/config"
	"telemetry/internal/types"
)

// Serializer writes payloads in one format and compression. Reading is not
// tied to that choice: any Serializer deserializes every supported payload.
type Serializer struct {
	format      Format
	compression Compression
}

// New returns a Serializer writing format with compression.
func New(format Format, compression Compression) (*Serializer, error) {
	if _, ok := codecs[format]; !ok {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
			fmt.Sprintf("unknown serialization format %q", format), nil,
			map[string]any{"field": "format"},
		)
	}
	if _, err := ParseCompression(string(compression)); err != nil || compression == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
			fmt.Sprintf("unknown serialization compression %q", compression), nil,
			map[string]any{"field": "compression"},
		)
	}
	return &Serializer{format: format, compression: compression}, nil
}

// NewFromConfig builds a Serializer from SERIALIZATION_* settings.
func NewFromConfig(cfg config.SerializationConfig) (*Serializer, error) {
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	compression, err := ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return New(format, compression)
}

// Default writes uncompressed JSON.
func Default() *Serializer {
	return &Serializer{format: FormatJSON, compression: CompressionNone}
}

// Serialize encodes item into a payload string.
func (s *Serializer) Serialize(item types.Item) (string, error) {
	env, err := toEnvelope(item)
	if err != nil {
		return "", err
	}

	data, err := codecs[s.format].marshal(env)
	if err != nil {
		return "", malformed(fmt.Sprintf("failed to encode %s item", item.Kind()), err)
	}

	if s.format == FormatJSON && s.compression == CompressionNone {
		return string(data), nil
	}

	packed, err := compress(data, s.compression)
	if err != nil {
		return "", malformed("failed to compress payload", err)
	}
	return tag(s.format, s.compression) + base64.StdEncoding.EncodeToString(packed), nil
}

// Deserialize decodes a payload produced by any Serializer. Malformed input
// is ErrCodeInternalSerialization; a well-formed payload naming an unknown
// kind is ErrCodeInternalUnsupportedKind.
func (s *Serializer) Deserialize(payload string) (types.Item, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, malformed("payload is empty", nil)
	}

	if strings.HasPrefix(trimmed, "{") {
		return decodeEnvelope(codecs[FormatJSON], []byte(trimmed))
	}

	format, compression, body, err := parseTag(trimmed)
	if err != nil {
		return nil, err
	}
	packed, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, malformed("payload body is not valid base64", err)
	}
	data, err := decompress(packed, compression)
	if err != nil {
		return nil, malformed("failed to decompress payload", err)
	}
	return decodeEnvelope(codecs[format], data)
}

func toEnvelope(item types.Item) (envelope, error) {
	switch it := item.(type) {
	case *types.EventTelemetry:
		if it == nil {
			break
		}
		return envelope{Kind: types.ItemKindEvent, Item: it}, nil
	case *types.DiagnosticsTelemetry:
		if it == nil {
			break
		}
		return envelope{Kind: types.ItemKindDiagnostics, Item: it}, nil
	case types.NullItem:
		return envelope{Kind: types.ItemKindNull, Item: it}, nil
	case *types.AggregateItem:
		if it == nil {
			break
		}
		children := make([]envelope, len(it.Items))
		for i, child := range it.Items {
			env, err := toEnvelope(child)
			if err != nil {
				return envelope{}, err
			}
			children[i] = env
		}
		return envelope{Kind: types.ItemKindAggregate, Item: aggregateWire{SampledUTC: it.SampledUTC, Items: children}}, nil
	}
	return envelope{}, unsupported(fmt.Sprintf("%T", item))
}

func decodeEnvelope(c codec, data []byte) (types.Item, error) {
	kind, raw, err := c.split(data)
	if err != nil {
		return nil, malformed("payload is not a valid envelope", err)
	}
	if len(raw) == 0 {
		return nil, malformed(fmt.Sprintf("%s payload has no item", kind), nil)
	}

	switch kind {
	case types.ItemKindEvent:
		var e types.EventTelemetry
		if err := c.unmarshal(raw, &e); err != nil {
			return nil, malformed("failed to decode event item", err)
		}
		if e.Properties == nil {
			e.Properties = map[string]*string{}
		}
		if e.Metrics == nil {
			e.Metrics = map[string]decimal.NullDecimal{}
		}
		if err := e.Validate(); err != nil {
			return nil, malformed("decoded event item is invalid", err)
		}
		return &e, nil

	case types.ItemKindDiagnostics:
		var d types.DiagnosticsTelemetry
		if err := c.unmarshal(raw, &d); err != nil {
			return nil, malformed("failed to decode diagnostics item", err)
		}
		if d.ProcessSiblingAssemblies == nil {
			d.ProcessSiblingAssemblies = []types.AssemblyDetails{}
		}
		return &d, nil

	case types.ItemKindNull:
		var n types.NullItem
		if err := c.unmarshal(raw, &n); err != nil {
			return nil, malformed("failed to decode null item", err)
		}
		return n, nil

	case types.ItemKindAggregate:
		sampled, rawChildren, err := c.splitAggregate(raw)
		if err != nil {
			return nil, malformed("failed to decode aggregate item", err)
		}
		children := make([]types.Item, len(rawChildren))
		for i, rc := range rawChildren {
			child, err := decodeEnvelope(c, rc)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		return types.NewAggregateItem(sampled, children...)
	}
	return nil, unsupported(string(kind))
}

func unsupported(kind string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeInternalUnsupportedKind,
		fmt.Sprintf("unsupported item kind %q", kind), nil,
		map[string]any{"kind": kind},
	)
}
