// Package jsonpath extracts values from response payloads with a small
// JSONPath dialect ($, .field, ['field'], [n]) evaluated by gjson.
package jsonpath

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Path is a compiled JSONPath expression.
type Path struct {
	expr  string
	gpath string
}

// Compile converts a JSONPath expression to its gjson form.
//
//	$                -> @this
//	$.users[0].name  -> users.0.name
//	$['a.b']         -> a\.b
func Compile(expr string) (Path, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Path{}, fmt.Errorf("empty JSONPath expression")
	}
	if !strings.HasPrefix(expr, "$") {
		return Path{}, fmt.Errorf("JSONPath must start with $: %s", expr)
	}

	var parts []string
	rest := expr[1:]
	for rest != "" {
		switch {
		case strings.HasPrefix(rest, "."):
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end == -1 {
				end = len(rest)
			}
			if end == 0 {
				return Path{}, fmt.Errorf("empty field in JSONPath: %s", expr)
			}
			parts = append(parts, escape(rest[:end]))
			rest = rest[end:]
		case strings.HasPrefix(rest, "['"), strings.HasPrefix(rest, `["`):
			quote := rest[1:2]
			end := strings.Index(rest[2:], quote+"]")
			if end == -1 {
				return Path{}, fmt.Errorf("unterminated bracket in JSONPath: %s", expr)
			}
			parts = append(parts, escape(rest[2:2+end]))
			rest = rest[2+end+2:]
		case strings.HasPrefix(rest, "["):
			end := strings.Index(rest, "]")
			if end == -1 {
				return Path{}, fmt.Errorf("unterminated bracket in JSONPath: %s", expr)
			}
			index := rest[1:end]
			if _, err := strconv.Atoi(index); err != nil && index != "*" {
				return Path{}, fmt.Errorf("invalid array index %q in JSONPath: %s", index, expr)
			}
			if index == "*" {
				index = "#"
			}
			parts = append(parts, index)
			rest = rest[end+1:]
		default:
			return Path{}, fmt.Errorf("unexpected %q in JSONPath: %s", rest[:1], expr)
		}
	}

	gpath := "@this"
	if len(parts) > 0 {
		gpath = strings.Join(parts, ".")
	}
	return Path{expr: expr, gpath: gpath}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the original expression.
func (p Path) String() string { return p.expr }

// Get evaluates the path against a JSON document. Strings are returned
// unquoted, null as "null", objects and arrays as raw JSON.
func (p Path) Get(doc []byte) (string, error) {
	if len(doc) == 0 {
		return "", fmt.Errorf("empty JSON document")
	}
	if !gjson.ValidBytes(doc) {
		return "", fmt.Errorf("invalid JSON document")
	}

	result := gjson.GetBytes(doc, p.gpath)
	if !result.Exists() {
		return "", fmt.Errorf("path not found: %s", p.expr)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// Extract evaluates expr against a JSON document.
func Extract(doc []byte, expr string) (string, error) {
	p, err := Compile(expr)
	if err != nil {
		return "", err
	}
	return p.Get(doc)
}

// ExtractPayload evaluates expr against a decoded payload: a JSON value, a
// string holding JSON, or raw bytes.
func ExtractPayload(payload any, expr string) (string, error) {
	var doc []byte
	switch v := payload.(type) {
	case nil:
		return "", fmt.Errorf("no payload")
	case string:
		doc = []byte(v)
	case []byte:
		doc = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}
		doc = data
	}
	return Extract(doc, expr)
}

// ExtractMultiple evaluates several named expressions. Values that were
// found are returned even when others fail.
func ExtractMultiple(doc []byte, paths map[string]string) (map[string]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no JSONPath expressions provided")
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(paths))
	var errors []string
	for _, name := range names {
		value, err := Extract(doc, paths[name])
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		results[name] = value
	}

	if len(errors) > 0 {
		return results, fmt.Errorf("extraction errors: %s", strings.Join(errors, "; "))
	}
	return results, nil
}

// escape protects gjson's special characters inside a field name.
func escape(field string) string {
	var sb strings.Builder
	for _, r := range field {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
