package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString holds a credential such as a database DSN. Every formatting
// path (fmt verbs, JSON, slog) sees a placeholder; only Unmask exposes the
// plaintext.
type SecretString string

// String implements fmt.Stringer.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// GoString covers the %#v verb, which bypasses String.
func (s SecretString) GoString() string {
	return redactedPlaceholder
}

// MarshalJSON implements json.Marshaler.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// IsZero reports whether no secret has been set.
func (s SecretString) IsZero() bool {
	return s == ""
}

// Unmask returns the raw plaintext value. Callers are limited to the places
// that hand the secret to a driver (pgxpool, the migration runner).
func (s SecretString) Unmask() string {
	return string(s)
}
