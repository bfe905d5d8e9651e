package failure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 64 << 10

// Error body "type"/"code" values with a dedicated kind.
const (
	TypeInsufficientCredits = "insufficient_credits"
	TypeRateLimitExceeded   = "rate_limit_exceeded"
	TypeBandAccessDenied    = "band_access_denied"
)

// ClassifyResponse reads (a bounded prefix of) the response body and
// classifies the response. The caller still owns closing the body.
func ClassifyResponse(resp *http.Response) *Error {
	var body []byte
	if resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	}
	return Classify(resp.StatusCode, resp.Header, body)
}

// Classify maps an error status code, response headers and raw body onto
// exactly one failure. It never fails: combinations it does not know
// degrade to KindUnknown.
//
// The body may be either {"error":{...}} or a flat object; members of the
// nested error object take precedence over top-level ones.
func Classify(status int, header http.Header, body []byte) *Error {
	e := &Error{
		Kind:       KindUnknown,
		StatusCode: status,
		RequestID:  header.Get("X-Request-Id"),
	}

	f, ok := parseErrorBody(body)
	if !ok {
		e.Message = fmt.Sprintf("unparseable error body: %s", truncate(string(bytes.TrimSpace(body)), 200))
		return e
	}

	e.Message = f.str("message")
	e.Code = f.str("type")
	if e.Code == "" {
		e.Code = f.str("code")
	}
	hasType := func(t string) bool {
		return f.str("type") == t || f.str("code") == t
	}

	authStatus := status == http.StatusUnauthorized || status == http.StatusForbidden
	retryableStatus := status == http.StatusTooManyRequests || status >= http.StatusInternalServerError

	switch {
	case hasType(TypeBandAccessDenied) || (authStatus && (f.has("band") || f.has("required_tier"))):
		e.Kind = KindBandAccessDenied
		e.Band = f.str("band")
		e.RequiredTier = f.str("required_tier")
		e.CurrentTier = f.str("current_tier")
		e.defaultMessage("access to the requested band is denied")

	case status == http.StatusPaymentRequired || hasType(TypeInsufficientCredits) ||
		(!retryableStatus && f.creditsExhausted()):
		e.Kind = KindInsufficientCredits
		if v, ok := f.num("credits_required"); ok {
			e.CreditsRequired = int(v)
		}
		if v, ok := f.num("credits_remaining"); ok {
			e.CreditsRemaining = int(v)
		}
		e.defaultMessage("insufficient credits")

	case authStatus:
		e.Kind = KindAuthentication
		e.defaultMessage("authentication failed")

	case status == http.StatusTooManyRequests || hasType(TypeRateLimitExceeded):
		e.Kind = KindRateLimited
		e.RetryAfter, e.RetryAfterExplicit = retryAfter(header, f)
		e.defaultMessage("rate limit exceeded")

	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
		e.defaultMessage("invalid request")

	case status >= http.StatusInternalServerError:
		e.Kind = KindServer
		e.defaultMessage(fmt.Sprintf("gateway server error (HTTP %d)", status))

	default:
		e.defaultMessage(fmt.Sprintf("unexpected gateway error (HTTP %d)", status))
	}

	return e
}

// FromTransportError maps a network-level fault (connection refused, DNS
// failure, read timeout) onto KindTimeout or KindNetwork.
func FromTransportError(err error) *Error {
	if fe, ok := As(err); ok {
		return fe
	}

	kind := KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf("gateway connection error: %s", err.Error()),
		Err:     err,
	}
}

// IsTransportError reports whether err looks like a network-level fault
// rather than an application error.
func IsTransportError(err error) bool {
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Error) defaultMessage(msg string) {
	if e.Message == "" {
		e.Message = msg
	}
}

// errorFields is a two-level view of an error body.
type errorFields struct {
	nested map[string]any
	top    map[string]any
}

// parseErrorBody decodes body. An empty body yields empty fields; a body
// that is not a JSON object reports ok=false.
func parseErrorBody(body []byte) (errorFields, bool) {
	var f errorFields
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return f, true
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&f.top); err != nil || f.top == nil {
		return errorFields{}, false
	}

	switch v := f.top["error"].(type) {
	case map[string]any:
		f.nested = v
	case string:
		f.nested = map[string]any{"message": v}
	}
	return f, true
}

func (f errorFields) get(key string) (any, bool) {
	if v, ok := f.nested[key]; ok && v != nil {
		return v, true
	}
	v, ok := f.top[key]
	return v, ok && v != nil
}

func (f errorFields) has(key string) bool {
	_, ok := f.get(key)
	return ok
}

func (f errorFields) str(key string) string {
	v, ok := f.get(key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// creditsExhausted reports whether the body shows fewer credits remaining
// than the call required. A bare balance field is informational.
func (f errorFields) creditsExhausted() bool {
	required, ok := f.num("credits_required")
	if !ok {
		return false
	}
	remaining, ok := f.num("credits_remaining")
	return ok && remaining < required
}

func (f errorFields) num(key string) (float64, bool) {
	v, ok := f.get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// retryAfter reads the Retry-After header (delta-seconds or HTTP date),
// then the body's retry_after seconds.
func retryAfter(header http.Header, f errorFields) (time.Duration, bool) {
	if h := strings.TrimSpace(header.Get("Retry-After")); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil && secs >= 0 {
			return seconds(secs), true
		}
		if at, err := http.ParseTime(h); err == nil {
			d := time.Until(at)
			if d < 0 {
				d = 0
			}
			return d, true
		}
	}
	if secs, ok := f.num("retry_after"); ok && secs >= 0 {
		return seconds(secs), true
	}
	return DefaultRetryAfter, false
}

func seconds(s float64) time.Duration {
	if s > math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s * float64(time.Second))
}
