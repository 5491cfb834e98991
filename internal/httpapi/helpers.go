package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sipeed/picobridge/internal/ratelimit"
	"github.com/sipeed/picobridge/internal/registry"
)

// decodeBodyIgnoringAbsence decodes a JSON body into dst when present;
// every field in the registration/verify bodies is optional (spec
// §4.8's "{...}" bodies use "?" on every field), so a missing or empty
// body is not an error.
func decodeBodyIgnoringAbsence(r *http.Request, dst interface{}) {
	if r.Body == nil {
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil || len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func statusForDecision(kind registry.DecisionKind) int {
	switch kind {
	case registry.DecisionAccepted:
		return http.StatusOK
	case registry.DecisionAlreadyClaimed:
		return http.StatusConflict
	case registry.DecisionOwnershipMismatch:
		return http.StatusForbidden
	case registry.DecisionNotFound:
		return http.StatusNotFound
	case registry.DecisionNotPending:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decisionBody(d registry.Decision) map[string]interface{} {
	body := map[string]interface{}{"result": string(d.Kind)}
	if d.Kind == registry.DecisionAccepted || d.Kind == registry.DecisionAlreadyClaimed {
		body["record"] = publicRecord(d.Record)
	}
	return body
}

// publicRecord strips the ownership proof hash before a record ever
// leaves the process (spec §7 P10).
func publicRecord(rec registry.TenantRecord) map[string]interface{} {
	return map[string]interface{}{
		"phone_number":             rec.PhoneNumber,
		"registered_at":            rec.RegisteredAt,
		"status":                   rec.Status,
		"username":                 rec.Username,
		"model":                    rec.ModelID,
		"description":              rec.Description,
		"identity_key_fingerprint": rec.IdentityKeyFingerprint,
	}
}

func writeRateLimited(w http.ResponseWriter, err error) {
	var retryAfter string
	if rlErr, ok := err.(*ratelimit.Error); ok {
		retryAfter = rlErr.RetryAfter.String()
	}
	w.Header().Set("Retry-After", retryAfter)
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
