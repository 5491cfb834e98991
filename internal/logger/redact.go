package logger

import "sync"

// Redact scrubs known-sensitive field names before a record is written.
// The set is a fixed list of field names used for secret values
// (inference API keys, ownership secrets, attestation quotes), which
// RegisterSensitiveKey can extend; only values under a listed field
// name are redacted.
var (
	sensitiveMu   sync.RWMutex
	sensitiveKeys = map[string]bool{
		"api_key":            true,
		"ownership_secret":   true,
		"ownership_proof":    true,
		"quote_bytes":        true,
		"tdx_quote_base64":   true,
		"secret":             true,
		"token":              true,
		"authorization":      true,
	}
)

// RegisterSensitiveKey marks an additional field name for redaction.
func RegisterSensitiveKey(key string) {
	sensitiveMu.Lock()
	defer sensitiveMu.Unlock()
	sensitiveKeys[key] = true
}

// Redact returns a copy of fields with sensitive values replaced by a
// fixed placeholder. nil maps pass through as nil.
func Redact(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	sensitiveMu.RLock()
	defer sensitiveMu.RUnlock()

	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if sensitiveKeys[k] {
			out[k] = "[redacted]"
			continue
		}
		out[k] = v
	}
	return out
}
