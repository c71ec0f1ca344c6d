package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the command tree with args and returns stdout and the
// error from cobra.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(testContext(t))
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func userServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/1":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":1,"name":"Ada","token":"abc"}`)
		case "/echo":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"method": r.Method,
				"auth":   r.Header.Get("Authorization"),
				"q":      r.URL.Query().Get("q"),
			})
		case "/fail":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGetCommand(t *testing.T) {
	server := userServer(t)

	out, err := runCLI(t, "get", server.URL+"/users/1")
	require.NoError(t, err)

	assert.Contains(t, out, "▶ REQUEST: GET "+server.URL+"/users/1")
	assert.Contains(t, out, "◀ RESPONSE: ✓ 200")
	assert.Contains(t, out, "1 attempt")
	assert.Contains(t, out, `"name": "Ada"`)
}

func TestGetCommand_HeadersAndQuery(t *testing.T) {
	server := userServer(t)

	out, err := runCLI(t, "get", server.URL+"/echo",
		"-H", "Authorization: Bearer t0k",
		"-q", "q=tether",
		"-o", "json")
	require.NoError(t, err)

	var data struct {
		Success bool           `json:"success"`
		Status  *int           `json:"status"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.True(t, data.Success)
	require.NotNil(t, data.Status)
	assert.Equal(t, 200, *data.Status)
	assert.Equal(t, "Bearer t0k", data.Payload["auth"])
	assert.Equal(t, "tether", data.Payload["q"])
}

func TestPostCommand_JSONBody(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	_, err := runCLI(t, "post", server.URL, "--json", `{"name":"Ada"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada"}, received)
}

func TestPostCommand_InvalidJSON(t *testing.T) {
	_, err := runCLI(t, "post", "http://127.0.0.1:1", "--json", "{")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --json body")
}

func TestGetCommand_FailedRequest(t *testing.T) {
	server := userServer(t)

	out, err := runCLI(t, "get", server.URL+"/fail")
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, out, "◀ RESPONSE: ✗ 500")
	assert.Contains(t, out, "[ResponseError] HTTP 500 Internal Server Error")
	assert.Contains(t, out, "1 attempt)")
}

func TestGetCommand_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	out, err := runCLI(t, "get", target, "-r", "0", "-o", "json")
	require.ErrorIs(t, err, errFailed)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, false, data["success"])
	assert.Nil(t, data["status"])
	assert.Equal(t, "ConnectionError", data["kind"])
	assert.EqualValues(t, 1, data["attempts"])
}

func TestGetCommand_UnsupportedShape(t *testing.T) {
	out, err := runCLI(t, "get", "http://127.0.0.1:1", "-e", "xml", "-o", "json")
	require.ErrorIs(t, err, errFailed)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, "ValueError", data["kind"])
	assert.EqualValues(t, 0, data["attempts"])
}

func TestGetCommand_Extract(t *testing.T) {
	server := userServer(t)

	out, err := runCLI(t, "get", server.URL+"/users/1", "--extract", "$.token")
	require.NoError(t, err)
	assert.Contains(t, out, "$.token = abc")

	out, err = runCLI(t, "get", server.URL+"/users/1", "--extract", "$.missing")
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, out, "Extract $.missing: path not found")
}

func TestGetCommand_Schema(t *testing.T) {
	server := userServer(t)
	valid := writeFile(t, "user.json", `{
		"type": "object",
		"required": ["id", "name"],
		"properties": {"id": {"type": "integer"}, "name": {"type": "string"}}
	}`)
	invalid := writeFile(t, "strict.json", `{"type": "object", "required": ["email"]}`)

	out, err := runCLI(t, "get", server.URL+"/users/1", "--schema", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Schema: valid")

	out, err = runCLI(t, "get", server.URL+"/users/1", "--schema", invalid)
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, out, "✗ Schema:")
}

func TestGetCommand_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad header", []string{"get", "example.com", "-H", "no-colon"}, "invalid header"},
		{"bad query", []string{"get", "example.com", "-q", "=x"}, "invalid query parameter"},
		{"bad output", []string{"get", "example.com", "-o", "xml"}, "unsupported output format"},
		{"missing url", []string{"get"}, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

const collection = `
client:
  baseUrl: %s
  timeout: 5s
  maxRetries: 1
  headers:
    Authorization: Bearer {{token}}
environments:
  dev:
    variables:
      token: dev-token
      userId: "1"
requests:
  getUser:
    url: /users/{{userId}}
    method: GET
    extract: $.name
  echo:
    url: /echo
    method: GET
    query:
      q: "{{userId}}"
`

func TestRunCommand(t *testing.T) {
	server := userServer(t)
	path := writeFile(t, "tether.yaml", fmt.Sprintf(collection, server.URL))

	out, err := runCLI(t, "run", "getUser", "-c", path, "--env", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "▶ REQUEST: GET "+server.URL+"/users/1")
	assert.Contains(t, out, "$.name = Ada")
}

func TestRunCommand_ExtractFlagOverridesCollection(t *testing.T) {
	server := userServer(t)
	path := writeFile(t, "tether.yaml", fmt.Sprintf(collection, server.URL))

	out, err := runCLI(t, "run", "getUser", "-c", path, "--env", "dev", "--extract", "$.token")
	require.NoError(t, err)
	assert.Contains(t, out, "$.token = abc")
	assert.NotContains(t, out, "$.name")
}

func TestRunCommand_Errors(t *testing.T) {
	server := userServer(t)
	path := writeFile(t, "tether.yaml", fmt.Sprintf(collection, server.URL))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no config", []string{"run", "getUser"}, "collection file is required"},
		{"unknown request", []string{"run", "nope", "-c", path}, "nope"},
		{"unknown environment", []string{"run", "getUser", "-c", path, "--env", "prod"}, "prod"},
		{"missing file", []string{"run", "getUser", "-c", filepath.Join(t.TempDir(), "none.yaml")}, "config file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.NotErrorIs(t, err, errFailed)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBatchCommand(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer dev-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name":"Ada"}`)
	}))
	defer server.Close()
	path := writeFile(t, "tether.yaml", fmt.Sprintf(collection, server.URL))

	out, err := runCLI(t, "batch", "-c", path, "--env", "dev", "-n", "3", "--concurrency", "2")
	require.NoError(t, err)

	assert.EqualValues(t, 6, hits.Load())
	assert.Equal(t, 3, strings.Count(out, "✓ getUser"))
	assert.Equal(t, 3, strings.Count(out, "✓ echo"))
	assert.Contains(t, out, "Requests:   6 (6 ok, 0 failed)")
	assert.Contains(t, out, "Attempts:   6")
}

func TestBatchCommand_Rate(t *testing.T) {
	server := userServer(t)
	path := writeFile(t, "tether.yaml", fmt.Sprintf(collection, server.URL))

	start := time.Now()
	out, err := runCLI(t, "batch", "-c", path, "--env", "dev", "--request", "getUser", "-n", "5", "--rate", "50")
	require.NoError(t, err)

	// Four 20ms gaps after the immediate first dispatch.
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
	assert.Contains(t, out, "Requests:   5 (5 ok, 0 failed)")
}

func TestBatchCommand_SelectedRequestsAndFailures(t *testing.T) {
	server := userServer(t)
	path := writeFile(t, "tether.yaml", fmt.Sprintf(collection+`
  broken:
    url: /fail
    method: GET
`, server.URL))

	out, err := runCLI(t, "batch", "-c", path, "--env", "dev", "--request", "broken", "--request", "getUser", "-o", "json")
	require.ErrorIs(t, err, errFailed)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.EqualValues(t, 2, summary["total"])
	assert.EqualValues(t, 1, summary["failed"])
	assert.EqualValues(t, 0.5, summary["successRate"])
}

func TestBatchCommand_Errors(t *testing.T) {
	server := userServer(t)
	path := writeFile(t, "tether.yaml", fmt.Sprintf(collection, server.URL))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no config", []string{"batch"}, "collection file is required"},
		{"unknown request", []string{"batch", "-c", path, "--request", "nope"}, "request not found: nope"},
		{"zero concurrency", []string{"batch", "-c", path, "--concurrency", "0"}, "at least 1"},
		{"negative rate", []string{"batch", "-c", path, "--rate", "-1"}, "cannot be negative"},
		{"bad metrics address", []string{"batch", "-c", path, "--env", "dev", "--metrics-addr", "bad:addr:1"}, "metrics listener"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExecute(t *testing.T) {
	server := userServer(t)

	assert.Equal(t, 0, Execute(testContext(t), []string{"get", server.URL + "/users/1", "-o", "json"}))
	assert.Equal(t, 1, Execute(testContext(t), []string{"get", server.URL + "/fail", "-o", "json"}))
	assert.Equal(t, 1, Execute(testContext(t), []string{"no-such-command"}))
}

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com/path", "http://example.com/path"},
		{"localhost:8080", "http://localhost:8080"},
		{"https://example.com", "https://example.com"},
		{"http://example.com/a?b=c", "http://example.com/a?b=c"},
		{"/users/1", "/users/1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeTarget(tt.in))
		})
	}
}

func TestIsAbsoluteURL(t *testing.T) {
	assert.True(t, isAbsoluteURL("http://example.com"))
	assert.True(t, isAbsoluteURL("https://example.com/path"))
	assert.False(t, isAbsoluteURL("http://"))
	assert.False(t, isAbsoluteURL("ftp://example.com"))
	assert.False(t, isAbsoluteURL("/relative"))
}

func TestSplitPair(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		sep     string
		key     string
		value   string
		wantErr bool
	}{
		{"header", "Content-Type: application/json", ":", "Content-Type", "application/json", false},
		{"value with separator", "Authorization: Basic a:b", ":", "Authorization", "Basic a:b", false},
		{"query", "page=2", "=", "page", "2", false},
		{"empty value", "flag=", "=", "flag", "", false},
		{"missing separator", "novalue", "=", "", "", true},
		{"empty key", " : x", ":", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value, err := splitPair(tt.in, tt.sep)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.value, value)
		})
	}
}
