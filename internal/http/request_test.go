package http

import (
	"context"
	"io"
	"net/url"
	"reflect"
	"testing"
)

func TestNewRequest_NormalizesMethod(t *testing.T) {
	tests := []struct {
		method   string
		expected string
	}{
		{"get", "GET"},
		{"Post", "POST"},
		{" delete ", "DELETE"},
		{"PATCH", "PATCH"},
	}

	for _, tt := range tests {
		req := NewRequest(tt.method, "/x")
		if req.Method() != tt.expected {
			t.Errorf("NewRequest(%q).Method() = %q, want %q", tt.method, req.Method(), tt.expected)
		}
	}
}

func TestNewRequest_DefaultShape(t *testing.T) {
	req := NewRequest("GET", "/x")
	if req.Shape() != ShapeJSON {
		t.Errorf("Expected default shape json, got %s", req.Shape())
	}

	req = NewRequest("GET", "/x", WithShape("TEXT"))
	if req.Shape() != ShapeText {
		t.Errorf("Expected shape text, got %s", req.Shape())
	}
}

func TestRequest_ResolveURL(t *testing.T) {
	tests := []struct {
		name        string
		baseURL     string
		endpoint    string
		options     []RequestOption
		expectedURL string
	}{
		{
			name:        "Relative endpoint",
			baseURL:     "https://api.example.com",
			endpoint:    "/users",
			expectedURL: "https://api.example.com/users",
		},
		{
			name:        "Trailing slash in base URL",
			baseURL:     "https://api.example.com/",
			endpoint:    "/users",
			expectedURL: "https://api.example.com/users",
		},
		{
			name:        "Absolute endpoint is used verbatim",
			baseURL:     "https://api.example.com",
			endpoint:    "http://other.example.com/status",
			expectedURL: "http://other.example.com/status",
		},
		{
			name:        "Upper-case scheme is used verbatim",
			baseURL:     "https://api.example.com",
			endpoint:    "HTTPS://other.example.com/status",
			expectedURL: "HTTPS://other.example.com/status",
		},
		{
			name:        "Any absolute URL is used verbatim",
			baseURL:     "https://api.example.com",
			endpoint:    "ftp://files.example.com/report.csv",
			expectedURL: "ftp://files.example.com/report.csv",
		},
		{
			name:        "Colon in a relative path",
			baseURL:     "https://api.example.com",
			endpoint:    "/items/a:b",
			expectedURL: "https://api.example.com/items/a:b",
		},
		{
			name:        "Query parameters are appended",
			baseURL:     "https://api.example.com",
			endpoint:    "/users",
			options:     []RequestOption{WithQuery(map[string]any{"page": 1, "limit": "10"})},
			expectedURL: "https://api.example.com/users?limit=10&page=1",
		},
		{
			name:        "Query merges with existing query",
			baseURL:     "https://api.example.com",
			endpoint:    "/search?q=go",
			options:     []RequestOption{WithQueryParam("page", "2")},
			expectedURL: "https://api.example.com/search?page=2&q=go",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("GET", tt.endpoint, tt.options...)
			got, err := req.ResolveURL(tt.baseURL)
			if err != nil {
				t.Fatalf("ResolveURL returned error: %v", err)
			}
			if got != tt.expectedURL {
				t.Errorf("Expected URL %s, got %s", tt.expectedURL, got)
			}
		})
	}
}

func TestRequest_IsImmutable(t *testing.T) {
	headers := map[string]string{"X-Test": "one"}
	query := map[string]any{"a": "1"}
	req := NewRequest("GET", "/x", WithRequestHeaders(headers), WithQuery(query))

	headers["X-Test"] = "two"
	query["a"] = "2"
	if req.Headers()["X-Test"] != "one" {
		t.Errorf("Request headers changed through caller map")
	}

	req.Headers()["X-Test"] = "three"
	req.Query().Set("a", "3")
	if req.Headers()["X-Test"] != "one" {
		t.Errorf("Request headers changed through accessor")
	}
	if req.Query().Get("a") != "1" {
		t.Errorf("Request query changed through accessor")
	}
}

func TestRequest_JSONBodyIsImmutable(t *testing.T) {
	body := map[string]any{"user": "alice", "roles": []any{"admin"}}
	req := NewRequest("POST", "/x", WithJSON(body))

	body["user"] = "mallory"
	body["roles"].([]any)[0] = "root"

	want := map[string]any{"user": "alice", "roles": []any{"admin"}}
	if got := req.Body(); !reflect.DeepEqual(got, want) {
		t.Errorf("Request body changed through caller value: %#v", got)
	}

	req.Body().(map[string]any)["user"] = "eve"
	if got := req.Body(); !reflect.DeepEqual(got, want) {
		t.Errorf("Request body changed through accessor: %#v", got)
	}

	encoded, err := req.encodeBody()
	if err != nil {
		t.Fatalf("encodeBody returned error: %v", err)
	}
	if string(encoded.data) != `{"roles":["admin"],"user":"alice"}` {
		t.Errorf("Unexpected encoded body %s", encoded.data)
	}
}

func TestRequest_BodyVariantsAreExclusive(t *testing.T) {
	req := NewRequest("POST", "/x", WithJSON(map[string]string{"a": "b"}), WithData("raw"))
	body, ok := req.Body().([]byte)
	if !ok || string(body) != "raw" {
		t.Fatalf("Expected raw body to replace JSON body, got %#v", req.Body())
	}

	req = NewRequest("POST", "/x", WithData("raw"), WithForm(url.Values{"k": {"v"}}))
	if _, ok := req.Body().(url.Values); !ok {
		t.Fatalf("Expected form body, got %#v", req.Body())
	}

	if NewRequest("GET", "/x").HasBody() {
		t.Errorf("Expected no body")
	}
}

func TestRequest_Build(t *testing.T) {
	tests := []struct {
		name                string
		options             []RequestOption
		expectedBody        string
		expectedContentType string
	}{
		{
			name:                "JSON body",
			options:             []RequestOption{WithJSON(map[string]string{"name": "John"})},
			expectedBody:        `{"name":"John"}`,
			expectedContentType: "application/json",
		},
		{
			name:         "Raw body",
			options:      []RequestOption{WithData("hello")},
			expectedBody: "hello",
		},
		{
			name:                "Form body",
			options:             []RequestOption{WithForm(url.Values{"a": {"1"}})},
			expectedBody:        "a=1",
			expectedContentType: "application/x-www-form-urlencoded",
		},
		{
			name: "Explicit content type wins",
			options: []RequestOption{
				WithJSON([]int{1}),
				WithRequestHeader("Content-Type", "application/vnd.api+json"),
			},
			expectedBody:        `[1]`,
			expectedContentType: "application/vnd.api+json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("post", "/users", tt.options...)
			body, err := req.encodeBody()
			if err != nil {
				t.Fatalf("encodeBody returned error: %v", err)
			}

			// Build twice to make sure the body can be replayed.
			for i := 0; i < 2; i++ {
				httpReq, err := req.build(context.Background(), "https://api.example.com/users", req.headers, body)
				if err != nil {
					t.Fatalf("build returned error: %v", err)
				}
				if httpReq.Method != "POST" {
					t.Errorf("Expected method POST, got %s", httpReq.Method)
				}
				data, _ := io.ReadAll(httpReq.Body)
				if string(data) != tt.expectedBody {
					t.Errorf("Expected body %s, got %s", tt.expectedBody, string(data))
				}
				if got := httpReq.Header.Get("Content-Type"); got != tt.expectedContentType {
					t.Errorf("Expected Content-Type %q, got %q", tt.expectedContentType, got)
				}
			}
		})
	}
}

func TestRequest_EncodeBodyError(t *testing.T) {
	req := NewRequest("POST", "/x", WithJSON(make(chan int)))
	if _, err := req.encodeBody(); err == nil {
		t.Fatal("Expected error encoding a channel")
	}
}

func TestMergeHeaders(t *testing.T) {
	merged := mergeHeaders(
		map[string]string{"Accept": "text/plain", "User-Agent": "tether"},
		map[string]string{"accept": "application/json", "X-Extra": "1"},
	)

	if len(merged) != 3 {
		t.Fatalf("Expected 3 headers, got %d: %v", len(merged), merged)
	}
	if merged["accept"] != "application/json" {
		t.Errorf("Expected per-request header to win, got %v", merged)
	}
	if _, ok := merged["Accept"]; ok {
		t.Errorf("Expected default Accept to be replaced, got %v", merged)
	}
	if merged["User-Agent"] != "tether" {
		t.Errorf("Expected default User-Agent to be kept, got %v", merged)
	}
}
