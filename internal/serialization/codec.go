package serialization

import (
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"

	"telemetry/internal/types"
)

// codec encodes the envelope and splits it back into the kind and the raw
// item bytes, which are then decoded into the concrete type for that kind.
type codec interface {
	marshal(v any) ([]byte, error)
	unmarshal(data []byte, v any) error
	split(data []byte) (types.ItemKind, []byte, error)
	splitAggregate(data []byte) (time.Time, [][]byte, error)
}

// envelope is the wire form of one item.
type envelope struct {
	Kind types.ItemKind `json:"kind"`
	Item any            `json:"item"`
}

// aggregateWire is the wire form of an AggregateItem's body.
type aggregateWire struct {
	SampledUTC time.Time  `json:"sampled_utc"`
	Items      []envelope `json:"items"`
}

type jsonCodec struct{}

func (jsonCodec) marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) split(data []byte) (types.ItemKind, []byte, error) {
	var env struct {
		Kind types.ItemKind  `json:"kind"`
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, err
	}
	return env.Kind, env.Item, nil
}

func (jsonCodec) splitAggregate(data []byte) (time.Time, [][]byte, error) {
	var agg struct {
		SampledUTC time.Time         `json:"sampled_utc"`
		Items      []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &agg); err != nil {
		return time.Time{}, nil, err
	}
	items := make([][]byte, len(agg.Items))
	for i, raw := range agg.Items {
		items[i] = raw
	}
	return agg.SampledUTC, items, nil
}

// cborCodec uses deterministic encoding, so equal items produce equal
// payloads. Times are written as RFC 3339 strings to keep the zone and
// sub-second precision.
type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	enc, err := encOptions.EncMode()
	if err != nil {
		panic("serialization: CBOR encoder initialization failed: " + err.Error())
	}

	dec, err := cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("serialization: CBOR decoder initialization failed: " + err.Error())
	}
	return cborCodec{enc: enc, dec: dec}
}

func (c cborCodec) marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

func (c cborCodec) split(data []byte) (types.ItemKind, []byte, error) {
	var env struct {
		Kind types.ItemKind  `json:"kind"`
		Item cbor.RawMessage `json:"item"`
	}
	if err := c.dec.Unmarshal(data, &env); err != nil {
		return "", nil, err
	}
	return env.Kind, env.Item, nil
}

func (c cborCodec) splitAggregate(data []byte) (time.Time, [][]byte, error) {
	var agg struct {
		SampledUTC time.Time         `json:"sampled_utc"`
		Items      []cbor.RawMessage `json:"items"`
	}
	if err := c.dec.Unmarshal(data, &agg); err != nil {
		return time.Time{}, nil, err
	}
	items := make([][]byte, len(agg.Items))
	for i, raw := range agg.Items {
		items[i] = raw
	}
	return agg.SampledUTC, items, nil
}

var codecs = map[Format]codec{
	FormatJSON: jsonCodec{},
	FormatCBOR: newCBORCodec(),
}
