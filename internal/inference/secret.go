package inference

import "crypto/subtle"

// APIKey wraps the inference service credential so it can never be
// accidentally formatted into a log line or error string — its
// String() method always redacts, and comparisons are constant-time
// (spec §4.6).
type APIKey struct {
	value string
}

func NewAPIKey(value string) APIKey { return APIKey{value: value} }

func (k APIKey) String() string {
	if k.value == "" {
		return "(unset)"
	}
	return "[redacted]"
}

func (k APIKey) Empty() bool { return k.value == "" }

func (k APIKey) Equal(other string) bool {
	return subtle.ConstantTimeCompare([]byte(k.value), []byte(other)) == 1
}

// Reveal returns the raw secret for use in an Authorization header.
// Never pass its result to a logger or error value.
func (k APIKey) Reveal() string { return k.value }
