package output

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	tetherhttp "github.com/wesleyorama2/tether/internal/http"
	"github.com/wesleyorama2/tether/internal/metrics"
)

func TestFormatter_FormatRequest(t *testing.T) {
	formatter := NewFormatter(true, true) // verbose, no color

	req := tetherhttp.NewRequest("POST", "/users",
		tetherhttp.WithRequestHeader("Authorization", "Bearer token123"),
		tetherhttp.WithRequestHeader("Accept", "application/json"),
		tetherhttp.WithJSON(map[string]string{"name": "John Doe"}),
	)

	output := formatter.FormatRequest(req, "https://api.example.com/users")

	expectedParts := []string{
		"REQUEST: POST https://api.example.com/users",
		"Headers:",
		"Accept: application/json",
		"Authorization: Bearer token123",
		"Body:",
		`"name": "John Doe"`,
	}
	for _, part := range expectedParts {
		assert.Contains(t, output, part)
	}
	// Headers are sorted.
	assert.Less(t, strings.Index(output, "Accept"), strings.Index(output, "Authorization"))
}

func TestFormatter_FormatRequestBodies(t *testing.T) {
	formatter := NewFormatter(false, true)

	raw := formatter.FormatRequest(tetherhttp.NewRequest("PUT", "/n", tetherhttp.WithData("plain")), "https://x/n")
	assert.Contains(t, raw, "Body: plain")

	form := formatter.FormatRequest(tetherhttp.NewRequest("POST", "/f",
		tetherhttp.WithForm(url.Values{"a": {"1"}})), "https://x/f")
	assert.Contains(t, form, "Body: a=1")

	none := formatter.FormatRequest(tetherhttp.NewRequest("GET", "/"), "https://x/")
	assert.NotContains(t, none, "Body:")
	assert.NotContains(t, none, "Headers:")
}

func TestFormatter_FormatResult(t *testing.T) {
	formatter := NewFormatter(false, true)

	output := formatter.FormatResult(resultFor(t, 200, "application/json", `{"id":1}`))
	assert.Contains(t, output, "RESPONSE: ✓ 200")
	assert.Contains(t, output, "1 attempt)")
	assert.Contains(t, output, `"id": 1`)
	assert.NotContains(t, output, "Headers:")
	assert.NotContains(t, output, "Error:")
}

func TestFormatter_FormatResultVerbose(t *testing.T) {
	formatter := NewFormatter(true, true)

	output := formatter.FormatResult(resultFor(t, 404, "text/plain", "not here"))
	assert.Contains(t, output, "RESPONSE: ✗ 404")
	assert.Contains(t, output, "Error: [ResponseError] HTTP 404 Not Found")
	assert.Contains(t, output, "URL: https://api.example.com/users")
	assert.Contains(t, output, "Request ID: ")
	assert.Contains(t, output, "X-Trace: t-1")
	assert.Contains(t, output, "not here")
}

func TestFormatter_FormatFailure(t *testing.T) {
	output := NewFormatter(false, true).FormatResult(failedResult(t))

	assert.Contains(t, output, "RESPONSE: ✗ no response")
	assert.Contains(t, output, "[ClientError]")
	assert.NotContains(t, output, "Body:")
}

func TestFormatter_FormatBytesPayload(t *testing.T) {
	output := NewFormatter(false, true).FormatResult(
		resultFor(t, 200, "application/octet-stream", "\x00\x01\x02", tetherhttp.WithShape(tetherhttp.ShapeBytes)))
	assert.Contains(t, output, "<3 bytes>")
}

func TestFormatter_FormatSummary(t *testing.T) {
	recorder := metrics.NewRecorder()
	recorder.Record(10*time.Millisecond, true, 1)
	recorder.Record(30*time.Millisecond, false, 3)

	output := NewFormatter(false, true).FormatSummary(recorder.Summary())
	assert.Contains(t, output, "Requests:   2 (1 ok, 1 failed)")
	assert.Contains(t, output, "Attempts:   4")
	assert.Contains(t, output, "Success:    50.0%")
	assert.Contains(t, output, "p50=10ms")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.50s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "42ms", formatDuration(42*time.Millisecond))
	assert.Equal(t, "7µs", formatDuration(7*time.Microsecond))
}

func TestColorDecisions(t *testing.T) {
	assert.False(t, UseColor(true, nil))
	assert.False(t, IsTerminal(nil))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, UseColor(false, nil))

	scheme := NoColorScheme()
	assert.Equal(t, "plain", scheme.Method.Sprint("plain"))
	assert.NotNil(t, DefaultColorScheme().Highlight)
}
