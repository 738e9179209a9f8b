// Package serialization turns telemetry items into self-describing payload
// strings for the raw queue and back.
//
// A JSON payload without compression is the plain envelope document:
//
//	{"kind":"event","item":{...}}
//
// Every other combination is written as "<format>+<compression>:" followed
// by the base64 of the (compressed) envelope, e.g. "cbor+zstd:KLUv/QBY...".
// Deserialize reads every combination regardless of what the Serializer
// writes.
package serialization

import (
	"fmt"
	"strings"

	"telemetry/internal/types"
)

// Format is the envelope encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// Compression is applied to the encoded envelope.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseFormat accepts "json" and "cbor". Empty selects JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	}
	return "", types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
		fmt.Sprintf("unknown serialization format %q", s), nil,
		map[string]any{"field": "SERIALIZATION_FORMAT"},
	)
}

// ParseCompression accepts "none", "zstd" and "lz4". Empty selects none.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(strings.TrimSpace(s))) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	}
	return "", types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
		fmt.Sprintf("unknown serialization compression %q", s), nil,
		map[string]any{"field": "SERIALIZATION_COMPRESSION"},
	)
}

// tag renders the payload prefix for the encoded form.
func tag(f Format, c Compression) string {
	return string(f) + "+" + string(c) + ":"
}

// parseTag splits a prefixed payload into its format, compression and body.
func parseTag(payload string) (Format, Compression, string, error) {
	head, body, ok := strings.Cut(payload, ":")
	if !ok {
		return "", "", "", malformed("payload has no format prefix", nil)
	}
	f, c, ok := strings.Cut(head, "+")
	if !ok {
		return "", "", "", malformed(fmt.Sprintf("payload prefix %q has no compression", head), nil)
	}
	format, err := ParseFormat(f)
	if err != nil || f == "" {
		return "", "", "", malformed(fmt.Sprintf("payload prefix %q names an unknown format", head), nil)
	}
	compression, err := ParseCompression(c)
	if err != nil || c == "" {
		return "", "", "", malformed(fmt.Sprintf("payload prefix %q names an unknown compression", head), nil)
	}
	return format, compression, body, nil
}

func malformed(msg string, err error) error {
	return types.NewAppError(types.ErrCodeInternalSerialization, msg, err)
}
