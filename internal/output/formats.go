package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	tetherhttp "github.com/wesleyorama2/tether/internal/http"
	"github.com/wesleyorama2/tether/internal/metrics"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a format name. An empty name is text.
func ParseFormat(name string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(name)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported output format %q (expected text, json or yaml)", name)
}

// FormatProvider is an interface for different output formatters
type FormatProvider interface {
	FormatRequest(req *tetherhttp.Request, target string) string
	FormatResult(result *tetherhttp.Result) string
	FormatSummary(summary metrics.Summary) string
}

// GetFormatter returns the formatter for format. Unknown formats fall back
// to text.
func GetFormatter(format OutputFormat, verbose, noColor bool) FormatProvider {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Verbose: verbose, Pretty: true}
	case FormatYAML:
		return &YAMLFormatter{Verbose: verbose}
	default:
		return NewFormatter(verbose, noColor)
	}
}

// RequestData represents the structured data of a request
type RequestData struct {
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Shape   string            `json:"expect" yaml:"expect"`
	Body    any               `json:"body,omitempty" yaml:"body,omitempty"`
}

// ResultData represents the structured data of a result
type ResultData struct {
	Success   bool              `json:"success" yaml:"success"`
	Status    *int              `json:"status" yaml:"status"`
	URL       string            `json:"url" yaml:"url"`
	Attempts  int               `json:"attempts" yaml:"attempts"`
	ElapsedMs float64           `json:"elapsedMs" yaml:"elapsedMs"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
	Kind      string            `json:"kind,omitempty" yaml:"kind,omitempty"`
	RequestID string            `json:"requestId,omitempty" yaml:"requestId,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Payload   any               `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// SummaryData represents a latency summary
type SummaryData struct {
	Total       int64   `json:"total" yaml:"total"`
	Success     int64   `json:"success" yaml:"success"`
	Failed      int64   `json:"failed" yaml:"failed"`
	Attempts    int64   `json:"attempts" yaml:"attempts"`
	SuccessRate float64 `json:"successRate" yaml:"successRate"`
	Throughput  float64 `json:"throughputRps" yaml:"throughputRps"`
	MinMs       float64 `json:"minMs" yaml:"minMs"`
	MeanMs      float64 `json:"meanMs" yaml:"meanMs"`
	P50Ms       float64 `json:"p50Ms" yaml:"p50Ms"`
	P90Ms       float64 `json:"p90Ms" yaml:"p90Ms"`
	P99Ms       float64 `json:"p99Ms" yaml:"p99Ms"`
	MaxMs       float64 `json:"maxMs" yaml:"maxMs"`
}

// NewRequestData flattens a request for structured output.
func NewRequestData(req *tetherhttp.Request, target string) RequestData {
	return RequestData{
		Method:  req.Method(),
		URL:     target,
		Headers: req.Headers(),
		Shape:   string(req.Shape()),
		Body:    bodyValue(req.Body()),
	}
}

// NewResultData flattens a result for structured output. Response headers
// are included only when verbose is set.
func NewResultData(result *tetherhttp.Result, verbose bool) ResultData {
	data := ResultData{
		Success:   result.Success(),
		URL:       result.URL(),
		Attempts:  result.Attempts(),
		ElapsedMs: millis(result.Elapsed().Seconds()),
		Error:     result.Error(),
		RequestID: result.RequestID(),
		Payload:   bodyValue(result.Payload()),
	}
	if status, ok := result.Status(); ok {
		data.Status = &status
	}
	if result.Kind() != tetherhttp.KindNone {
		data.Kind = result.Kind().String()
	}
	if verbose {
		data.Headers = flattenHeaders(result.Headers())
	}
	return data
}

// NewSummaryData converts a recorder summary.
func NewSummaryData(s metrics.Summary) SummaryData {
	return SummaryData{
		Total:       s.Total,
		Success:     s.Success,
		Failed:      s.Failed,
		Attempts:    s.Attempts,
		SuccessRate: s.SuccessRate(),
		Throughput:  s.Throughput(),
		MinMs:       millis(s.Min.Seconds()),
		MeanMs:      millis(s.Mean.Seconds()),
		P50Ms:       millis(s.P50.Seconds()),
		P90Ms:       millis(s.P90.Seconds()),
		P99Ms:       millis(s.P99.Seconds()),
		MaxMs:       millis(s.Max.Seconds()),
	}
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Verbose bool
	Pretty  bool
}

// FormatRequest formats a request as JSON
func (f *JSONFormatter) FormatRequest(req *tetherhttp.Request, target string) string {
	return f.marshal(NewRequestData(req, target))
}

// FormatResult formats a result as JSON
func (f *JSONFormatter) FormatResult(result *tetherhttp.Result) string {
	return f.marshal(NewResultData(result, f.Verbose))
}

// FormatSummary formats a summary as JSON
func (f *JSONFormatter) FormatSummary(summary metrics.Summary) string {
	return f.marshal(NewSummaryData(summary))
}

func (f *JSONFormatter) marshal(v any) string {
	var output []byte
	var err error
	if f.Pretty {
		output, err = json.MarshalIndent(v, "", "  ")
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "failed to marshal output: "+err.Error())
	}
	return string(output)
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	Verbose bool
}

// FormatRequest formats a request as YAML
func (f *YAMLFormatter) FormatRequest(req *tetherhttp.Request, target string) string {
	data := NewRequestData(req, target)
	data.Body = yamlNumbers(data.Body)
	return marshalYAML(data)
}

// FormatResult formats a result as YAML
func (f *YAMLFormatter) FormatResult(result *tetherhttp.Result) string {
	data := NewResultData(result, f.Verbose)
	data.Payload = yamlNumbers(data.Payload)
	return marshalYAML(data)
}

// FormatSummary formats a summary as YAML
func (f *YAMLFormatter) FormatSummary(summary metrics.Summary) string {
	return marshalYAML(NewSummaryData(summary))
}

func marshalYAML(v any) string {
	output, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: failed to marshal output: %s\n", err)
	}
	return string(output)
}

// yamlNumbers converts json.Number values, which yaml.v3 would quote as
// strings, into integers or floats. Integers outside int64 stay strings.
func yamlNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if strings.ContainsAny(string(t), ".eE") {
			if f, err := t.Float64(); err == nil {
				return f
			}
		}
		return string(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			out[key] = yamlNumbers(value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, value := range t {
			out[i] = yamlNumbers(value)
		}
		return out
	}
	return v
}

// bodyValue replaces raw bytes with their length.
func bodyValue(v any) any {
	if b, ok := v.([]byte); ok {
		return fmt.Sprintf("<%d bytes>", len(b))
	}
	return v
}

func flattenHeaders(h map[string][]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func millis(seconds float64) float64 {
	return float64(int64(seconds*1e6)) / 1e3
}
