package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Shape selects how a response payload is decoded.
type Shape string

const (
	ShapeJSON  Shape = "json"
	ShapeText  Shape = "text"
	ShapeBytes Shape = "bytes"
)

// Valid reports whether s is a supported shape.
func (s Shape) Valid() bool {
	switch s {
	case ShapeJSON, ShapeText, ShapeBytes:
		return true
	}
	return false
}

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyJSON
	bodyRaw
	bodyForm
)

// Request describes one outbound call. It is immutable once built: maps are
// copied on the way in and on the way out.
type Request struct {
	method   string
	endpoint string
	query    url.Values
	headers  map[string]string
	shape    Shape

	bodyKind bodyKind
	jsonData []byte
	jsonErr  error
	rawBody  []byte
	form     url.Values
}

// RequestOption configures a Request during construction.
type RequestOption func(*Request)

// NewRequest builds a request for method and endpoint. The method is
// upper-cased and the expected shape defaults to json.
func NewRequest(method, endpoint string, options ...RequestOption) *Request {
	req := &Request{
		method:   strings.ToUpper(strings.TrimSpace(method)),
		endpoint: endpoint,
		query:    make(url.Values),
		headers:  make(map[string]string),
		shape:    ShapeJSON,
	}

	for _, option := range options {
		option(req)
	}

	return req
}

// WithQuery adds query parameters; values are rendered with fmt.Sprint.
func WithQuery(params map[string]any) RequestOption {
	return func(r *Request) {
		for key, value := range params {
			r.query.Add(key, fmt.Sprint(value))
		}
	}
}

// WithQueryParam adds a single query parameter.
func WithQueryParam(key, value string) RequestOption {
	return func(r *Request) {
		r.query.Add(key, value)
	}
}

// WithRequestHeader sets a per-request header. Per-request headers win over
// client defaults.
func WithRequestHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.headers[key] = value
	}
}

// WithRequestHeaders sets several per-request headers.
func WithRequestHeaders(headers map[string]string) RequestOption {
	return func(r *Request) {
		for key, value := range headers {
			r.headers[key] = value
		}
	}
}

// WithJSON sends v encoded as JSON. It replaces any other body. v is
// encoded immediately, so later changes to it do not affect the request;
// an encoding failure is reported when the request is sent.
func WithJSON(v any) RequestOption {
	return func(r *Request) {
		r.clearBody()
		r.bodyKind = bodyJSON
		r.jsonData, r.jsonErr = json.Marshal(v)
	}
}

// WithData sends raw text. It replaces any other body.
func WithData(data string) RequestOption {
	return WithBytes([]byte(data))
}

// WithBytes sends raw bytes. It replaces any other body.
func WithBytes(data []byte) RequestOption {
	return func(r *Request) {
		r.clearBody()
		r.bodyKind = bodyRaw
		r.rawBody = append([]byte{}, data...)
	}
}

// WithForm sends url-encoded form values. It replaces any other body.
func WithForm(values url.Values) RequestOption {
	return func(r *Request) {
		r.clearBody()
		r.bodyKind = bodyForm
		r.form = cloneValues(values)
	}
}

// WithShape fixes the expected response shape.
func WithShape(shape Shape) RequestOption {
	return func(r *Request) {
		r.shape = Shape(strings.ToLower(string(shape)))
	}
}

func (r *Request) clearBody() {
	r.bodyKind = bodyNone
	r.jsonData = nil
	r.jsonErr = nil
	r.rawBody = nil
	r.form = nil
}

// Method returns the upper-case method.
func (r *Request) Method() string { return r.method }

// Endpoint returns the endpoint as given.
func (r *Request) Endpoint() string { return r.endpoint }

// Shape returns the expected response shape.
func (r *Request) Shape() Shape { return r.shape }

// Query returns a copy of the query parameters.
func (r *Request) Query() url.Values { return cloneValues(r.query) }

// Headers returns a copy of the per-request headers.
func (r *Request) Headers() map[string]string { return cloneHeaders(r.headers) }

// HasBody reports whether the request carries a body.
func (r *Request) HasBody() bool { return r.bodyKind != bodyNone }

// Body returns a copy of the body: the JSON value decoded from its
// encoding, the raw bytes, or the form values. It returns nil when there is
// no body or the JSON value could not be encoded.
func (r *Request) Body() any {
	switch r.bodyKind {
	case bodyJSON:
		if r.jsonErr != nil {
			return nil
		}
		v, err := decodeJSON(r.jsonData)
		if err != nil {
			return nil
		}
		return v
	case bodyRaw:
		return append([]byte(nil), r.rawBody...)
	case bodyForm:
		return cloneValues(r.form)
	}
	return nil
}

// String renders the request for logs.
func (r *Request) String() string {
	keys := make([]string, 0, len(r.headers))
	for key := range r.headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return fmt.Sprintf("<Request method=%s endpoint=%s query=%s headers=%v shape=%s>",
		r.method, r.endpoint, r.query.Encode(), keys, r.shape)
}

// ResolveURL returns the absolute URL for this request. Endpoints with a
// scheme are used verbatim, anything else is appended to baseURL. Query
// parameters are merged into the result.
func (r *Request) ResolveURL(baseURL string) (string, error) {
	target := r.endpoint
	if !hasScheme(target) {
		target = strings.TrimRight(baseURL, "/") + target
	}

	if len(r.query) == 0 {
		return target, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return target, err
	}
	query := u.Query()
	for key, values := range r.query {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// encodedBody is the buffered body plus the content type it implies.
type encodedBody struct {
	data        []byte
	contentType string
}

func (r *Request) encodeBody() (*encodedBody, error) {
	switch r.bodyKind {
	case bodyJSON:
		if r.jsonErr != nil {
			return nil, fmt.Errorf("%w: encode JSON body: %w", ErrInvalidValue, r.jsonErr)
		}
		return &encodedBody{data: r.jsonData, contentType: "application/json"}, nil
	case bodyRaw:
		return &encodedBody{data: r.rawBody}, nil
	case bodyForm:
		return &encodedBody{
			data:        []byte(r.form.Encode()),
			contentType: "application/x-www-form-urlencoded",
		}, nil
	}
	return nil, nil
}

// build creates the *http.Request for one attempt. The body is rebuilt from
// the buffered bytes every time so retries send the same payload.
func (r *Request) build(ctx context.Context, target string, headers map[string]string, body *encodedBody) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reader)
	if err != nil {
		return nil, err
	}

	if body != nil && body.contentType != "" {
		req.Header.Set("Content-Type", body.contentType)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

func hasScheme(endpoint string) bool {
	u, err := url.Parse(endpoint)
	return err == nil && u.IsAbs()
}

func mergeHeaders(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range overrides {
		for existing := range merged {
			if existing != key && strings.EqualFold(existing, key) {
				delete(merged, existing)
			}
		}
		merged[key] = value
	}
	return merged
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vals := range values {
		out[key] = append([]string(nil), vals...)
	}
	return out
}

func cloneHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		out[key] = value
	}
	return out
}
