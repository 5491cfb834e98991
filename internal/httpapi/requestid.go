package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sipeed/picobridge/internal/logger"
)

// requestIDHeader echoes a per-request correlation ID, generated the
// way goa-ai mints run/tool-use IDs (uuid.NewString()) rather than a
// hand-rolled random-hex helper.
const requestIDHeader = "X-Request-Id"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		logger.DebugCF("httpapi", "request received", map[string]interface{}{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		next.ServeHTTP(w, r)
	})
}
