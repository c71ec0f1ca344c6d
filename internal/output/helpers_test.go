package output

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	tetherhttp "github.com/wesleyorama2/tether/internal/http"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// resultFor runs one request against a canned response.
func resultFor(t *testing.T, status int, contentType, body string, opts ...tetherhttp.RequestOption) *tetherhttp.Result {
	t.Helper()
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		header := http.Header{}
		header.Set("Content-Type", contentType)
		header.Set("X-Trace", "t-1")
		return &http.Response{
			StatusCode: status,
			Header:     header,
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	})
	client := tetherhttp.NewClient(tetherhttp.WithTransport(transport))
	t.Cleanup(func() { client.Close() })
	return client.Do(context.Background(), tetherhttp.NewRequest("GET", "https://api.example.com/users", opts...))
}

// failedResult runs one request whose transport always fails.
func failedResult(t *testing.T) *tetherhttp.Result {
	t.Helper()
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("boom")
	})
	client := tetherhttp.NewClient(tetherhttp.WithTransport(transport), tetherhttp.WithMaxRetries(0))
	t.Cleanup(func() { client.Close() })
	return client.Do(context.Background(), tetherhttp.NewRequest("GET", "https://api.example.com/users"))
}
