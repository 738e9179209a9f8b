package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry/internal/types"
)

type failingJSON struct{}

func (failingJSON) MarshalJSON() ([]byte, error) { return nil, errors.New("boom") }

func TestInsertStatement(t *testing.T) {
	sql, args, err := insertStatement("metric", []column{
		col("id", 1),
		textCol("name", "MetricKey1"),
		textCol("value", (*string)(nil)),
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO metric (id, name, value) VALUES ($1, $2, $3)", sql)
	assert.Equal(t, []any{1, "MetricKey1", nil}, args)
}

func TestInsertStatement_EncodeFailure(t *testing.T) {
	_, _, err := insertStatement("machine_details", []column{textCol("memory_map_json", failingJSON{})})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalSerialization, appErr.Code)
	assert.Equal(t, "memory_map_json", appErr.Details["column"])
}

func TestBindString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "plain", "plain"},
		{"nil pointer", (*string)(nil), nil},
		{"pointer", types.StringPtr("value"), "value"},
		{"valuer", types.AssemblyVersion{Major: 1}, `{"major":1,"minor":0,"build":0,"revision":0}`},
		{"nil map valuer", types.MachineNameMap(nil), "null"},
		{"struct", struct {
			A int `json:"a"`
		}{A: 2}, `{"a":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bindString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
