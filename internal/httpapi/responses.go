// Package httpapi implements the Registration HTTP Service (spec
// §4.8): JSON endpoints over C3 (Tenant Registry), C7 (Chat Transport),
// and C1 (Attestation Oracle), routed with the stdlib's Go 1.22+
// method+pattern ServeMux — no third-party router appears as a real
// dependency anywhere in the retrieved pack, so none is introduced
// here.
package httpapi

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
