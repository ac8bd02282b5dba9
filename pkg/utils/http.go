package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var idSeq uint64

// JSONError writes a JSON error response with the given status code and
// message. It ensures the Content-Type is set to application/json.
func JSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// JSONWrite writes the provided value as JSON with the given status code.
func JSONWrite(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(v)
}

// GenThreadID mints a new opaque thread identifier.
func GenThreadID() string {
	return uuid.NewString()
}

// GenMessageID mints a new opaque message identifier.
func GenMessageID() string {
	return uuid.NewString()
}

// GenRequestID mints a short, sortable request identifier; the gateway
// assigns one to every request that arrives without an X-Request-ID.
func GenRequestID() string {
	n := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("r-%s-%d", time.Now().UTC().Format("20060102T150405"), n)
}
