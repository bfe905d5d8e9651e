package api

import (
	"regexp"

	"github.com/google/uuid"
)

// RequestIDHeader is the header used to correlate client calls with gateway logs.
const RequestIDHeader = "X-Request-Id"

var requestIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// NewRequestID generates a random (version 4) UUID in its canonical string form.
func NewRequestID() string {
	return uuid.NewString()
}

// ValidateRequestID reports whether id looks like an identifier produced by
// NewRequestID. Caller-supplied identifiers do not need to pass this check.
func ValidateRequestID(id string) bool {
	return requestIDPattern.MatchString(id)
}
