package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

var (
	_ SecretProvider = (*EnvVarProvider)(nil)
	_ SecretProvider = (*SSMProvider)(nil)
)

func TestEnvVarProviderResolvesSetVariables(t *testing.T) {
	t.Setenv("TELEMETRY_TEST_SECRET_A", "alpha")
	unsetForTest(t, "TELEMETRY_TEST_SECRET_MISSING")

	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(),
		[]string{"TELEMETRY_TEST_SECRET_A", "TELEMETRY_TEST_SECRET_MISSING"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(result) != 1 || result["TELEMETRY_TEST_SECRET_A"] != "alpha" {
		t.Errorf("result = %v, want only the set variable", result)
	}
}

func TestEnvVarProviderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewEnvVarProvider().GetParametersBatch(ctx, []string{"X"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

type mockSSMClient struct {
	calls   [][]string
	invalid []string
	err     error
}

func (m *mockSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.calls = append(m.calls, in.Names)
	if m.err != nil {
		return nil, m.err
	}
	out := &ssm.GetParametersOutput{InvalidParameters: m.invalid}
	for _, name := range in.Names {
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{
			Name:  aws.String(name),
			Value: aws.String("value:" + name),
		})
	}
	return out, nil
}

func TestSSMProviderBatchesByTen(t *testing.T) {
	client := &mockSSMClient{}
	provider := newSSMProviderWithClient("us-east-1", client)

	keys := make([]string, 23)
	for i := range keys {
		keys[i] = "/dev/telemetry/p" + strings.Repeat("x", i)
	}

	result, err := provider.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(client.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(client.calls))
	}
	if len(client.calls[0]) != 10 || len(client.calls[2]) != 3 {
		t.Errorf("batch sizes = %d, %d, %d", len(client.calls[0]), len(client.calls[1]), len(client.calls[2]))
	}
	if len(result) != 23 || result[keys[5]] != "value:"+keys[5] {
		t.Errorf("result has %d entries", len(result))
	}
}

func TestSSMProviderEmptyKeys(t *testing.T) {
	client := &mockSSMClient{}
	result, err := newSSMProviderWithClient("us-east-1", client).GetParametersBatch(context.Background(), nil)
	if err != nil || result == nil || len(result) != 0 {
		t.Errorf("result = %v, err = %v, want empty map", result, err)
	}
	if len(client.calls) != 0 {
		t.Error("no SSM call expected for empty keys")
	}
}

func TestSSMProviderInvalidParameters(t *testing.T) {
	client := &mockSSMClient{invalid: []string{"/dev/telemetry/missing"}}
	_, err := newSSMProviderWithClient("us-east-1", client).GetParametersBatch(context.Background(), []string{"/dev/telemetry/missing"})
	if err == nil || !strings.Contains(err.Error(), "/dev/telemetry/missing") {
		t.Errorf("err = %v, want not-found error naming the parameter", err)
	}
}

func TestSSMProviderClientError(t *testing.T) {
	boom := errors.New("access denied")
	_, err := newSSMProviderWithClient("us-east-1", &mockSSMClient{err: boom}).GetParametersBatch(context.Background(), []string{"/a"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped client error", err)
	}
}

func TestSSMProviderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &mockSSMClient{}
	_, err := newSSMProviderWithClient("us-east-1", client).GetParametersBatch(ctx, []string{"/a"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(client.calls) != 0 {
		t.Error("no SSM call expected after cancellation")
	}
}

func TestNewSSMProviderOptions(t *testing.T) {
	p := NewSSMProvider("eu-west-1", WithSSMEndpoint("http://localhost:4566"))
	if p.region != "eu-west-1" || p.endpointURL != "http://localhost:4566" {
		t.Errorf("provider = %+v", p)
	}
}

func TestBuildInfoDefaultsAndLogAttrs(t *testing.T) {
	info := NewBuildInfo()
	if info.Version != "dev" || info.Commit != "none" || info.BuildTime != "unknown" {
		t.Errorf("NewBuildInfo() = %+v, want linker defaults", info)
	}
	attrs := info.LogAttrs()
	if len(attrs) != 6 || attrs[0] != "version" || attrs[1] != "dev" {
		t.Errorf("LogAttrs() = %v", attrs)
	}
}
