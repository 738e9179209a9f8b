package config

import "context"

// SecretProvider resolves secret references to plaintext values. SSMProvider
// serves deployed environments; EnvVarProvider serves local development and
// tests.
type SecretProvider interface {
	// GetParametersBatch resolves keys (SSM parameter paths or equivalent)
	// and returns key -> plaintext for every key it found. Keys that do not
	// resolve are omitted from the map; the caller decides whether that is
	// fatal.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
