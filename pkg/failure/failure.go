// Package failure defines the typed failure taxonomy of the client and the
// classifier that maps gateway error responses and transport faults onto it.
package failure

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Kind is the category of a failed call.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindInsufficientCredits
	KindRateLimited
	KindBandAccessDenied
	KindValidation
	KindServer
	KindNetwork
	KindTimeout
	KindStreamDecode
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindAuthentication:      "authentication",
	KindInsufficientCredits: "insufficient_credits",
	KindRateLimited:         "rate_limited",
	KindBandAccessDenied:    "band_access_denied",
	KindValidation:          "validation_error",
	KindServer:              "server_error",
	KindNetwork:             "network_error",
	KindTimeout:             "timeout",
	KindStreamDecode:        "stream_decode_error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a kind name (as produced by String) back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown failure kind %q", s)
}

// DefaultRetryAfter is the wait assumed for a rate-limited response that
// does not say how long to wait.
const DefaultRetryAfter = time.Second

// Error is a classified failure. Kind-specific fields are only meaningful
// for their kind.
type Error struct {
	Kind Kind

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Message is the upstream-provided message, or a local description.
	Message string

	// Code is the machine-readable error code or type, if the body had one.
	Code string

	// RequestID correlates the failure with gateway logs.
	RequestID string

	// KindRateLimited. RetryAfterExplicit is false when RetryAfter is DefaultRetryAfter.
	RetryAfter         time.Duration
	RetryAfterExplicit bool

	// KindInsufficientCredits.
	CreditsRequired  int
	CreditsRemaining int

	// KindBandAccessDenied.
	Band         string
	RequiredTier string
	CurrentTier  string

	// Err is the underlying cause for network, timeout and decode failures.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	s := e.Kind.String()
	if e.StatusCode != 0 {
		s = fmt.Sprintf("%s (HTTP %d)", s, e.StatusCode)
	}
	if msg != "" {
		s += ": " + msg
	}
	if e.RequestID != "" {
		s += " [request_id=" + e.RequestID + "]"
	}
	return s
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithRequestID returns a copy of e carrying the given request ID.
func (e *Error) WithRequestID(id string) *Error {
	c := *e
	c.RequestID = id
	return &c
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Is reports whether err carries a failure of the given kind.
func Is(err error, kind Kind) bool {
	fe, ok := As(err)
	return ok && fe.Kind == kind
}

// New creates a failure with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// StreamDecode creates a KindStreamDecode failure for a payload that could
// not be decoded.
func StreamDecode(err error, payload string) *Error {
	return &Error{
		Kind:    KindStreamDecode,
		Message: fmt.Sprintf("malformed stream payload %q: %s", truncate(payload, 200), err.Error()),
		Err:     err,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
