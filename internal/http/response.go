package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is the normalized outcome of one call. It is built once and never
// modified; Success is derived from the other fields at construction.
type Result struct {
	status    int
	hasStatus bool
	payload   any
	url       string
	err       string
	kind      Kind
	success   bool
	elapsed   time.Duration
	attempts  int
	headers   http.Header
	requestID string
}

// resultFields carries the inputs for newResult.
type resultFields struct {
	status    *int
	payload   any
	url       string
	err       string
	kind      Kind
	elapsed   time.Duration
	attempts  int
	headers   http.Header
	requestID string
}

func newResult(f resultFields) *Result {
	r := &Result{
		payload:   f.payload,
		url:       f.url,
		err:       f.err,
		kind:      f.kind,
		elapsed:   f.elapsed,
		attempts:  f.attempts,
		headers:   f.headers.Clone(),
		requestID: f.requestID,
	}
	if f.status != nil {
		r.status = *f.status
		r.hasStatus = true
	}
	r.success = r.hasStatus && r.status >= 200 && r.status < 300 && r.err == ""
	return r
}

// Status returns the HTTP status and whether a response was obtained.
func (r *Result) Status() (int, bool) { return r.status, r.hasStatus }

// StatusCode returns the HTTP status, or 0 when no response was obtained.
func (r *Result) StatusCode() int { return r.status }

// Payload returns the decoded payload: a JSON value, a string or []byte.
func (r *Result) Payload() any { return r.payload }

// URL returns the resolved request URL.
func (r *Result) URL() string { return r.url }

// Error returns the failure message, or "" when the call succeeded.
func (r *Result) Error() string { return r.err }

// Kind returns the classification of the final error, KindNone otherwise.
func (r *Result) Kind() Kind { return r.kind }

// Success reports whether a 2xx response was obtained without error.
func (r *Result) Success() bool { return r.success }

// Elapsed returns the time from the first attempt to the final outcome.
func (r *Result) Elapsed() time.Duration { return r.elapsed }

// Attempts returns how many attempts were performed.
func (r *Result) Attempts() int { return r.attempts }

// Headers returns a copy of the response headers.
func (r *Result) Headers() http.Header { return r.headers.Clone() }

// RequestID returns the correlation id assigned to the call.
func (r *Result) RequestID() string { return r.requestID }

// IsJSON reports whether the payload is a decoded JSON object or array.
func (r *Result) IsJSON() bool {
	switch r.payload.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// IsText reports whether the payload is a string.
func (r *Result) IsText() bool {
	_, ok := r.payload.(string)
	return ok
}

// IsBytes reports whether the payload is raw bytes.
func (r *Result) IsBytes() bool {
	_, ok := r.payload.([]byte)
	return ok
}

// Text returns the payload as a string when it is text or bytes.
func (r *Result) Text() (string, bool) {
	switch p := r.payload.(type) {
	case string:
		return p, true
	case []byte:
		return string(p), true
	}
	return "", false
}

// JSON returns the payload encoded as JSON. Text payloads are returned as
// their raw bytes so callers can inspect bodies that failed to decode.
func (r *Result) JSON() ([]byte, error) {
	switch p := r.payload.(type) {
	case nil:
		return nil, &DecodeError{Shape: ShapeJSON, Err: fmt.Errorf("no payload")}
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	}
	return json.Marshal(r.payload)
}

// DecodeJSON decodes the payload into v.
func (r *Result) DecodeJSON(v any) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &DecodeError{Shape: ShapeJSON, Err: err}
	}
	return nil
}

// IsClientError reports a 4xx status.
func (r *Result) IsClientError() bool {
	return r.hasStatus && r.status >= 400 && r.status < 500
}

// IsServerError reports a 5xx status.
func (r *Result) IsServerError() bool {
	return r.hasStatus && r.status >= 500 && r.status < 600
}

// String renders the result for logs.
func (r *Result) String() string {
	status := "none"
	if r.hasStatus {
		status = fmt.Sprintf("%d", r.status)
	}
	return fmt.Sprintf("<Result status=%s ok=%t url=%s attempts=%d elapsed=%s error=%q>",
		status, r.success, r.url, r.attempts, r.elapsed, r.err)
}
