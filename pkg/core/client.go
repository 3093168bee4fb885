package core

import (
	"net/http"

	"github.com/google/uuid"
)

// GenerateConnectionID returns the transport identifier for an inbound
// connection. Clients may pin their own ID via the X-Connection-ID header
// (used by reconnecting mobile clients); otherwise each connection gets a
// fresh one.
func GenerateConnectionID(r *http.Request) string {
	if id := r.Header.Get("X-Connection-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}
