package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	tetherhttp "github.com/wesleyorama2/tether/internal/http"
	"github.com/wesleyorama2/tether/internal/metrics"
)

// Formatter is responsible for formatting requests and results in text format
type Formatter struct {
	Verbose bool
	NoColor bool
	colors  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	colors := DefaultColorScheme()
	if noColor {
		colors = NoColorScheme()
	}
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		colors:  colors,
	}
}

// FormatRequest formats a request for display
func (f *Formatter) FormatRequest(req *tetherhttp.Request, target string) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("▶ REQUEST: %s %s\n", f.colors.Method.Sprint(req.Method()), f.colors.URL.Sprint(target)))

	headers := req.Headers()
	if len(headers) > 0 {
		buf.WriteString("  Headers:\n")
		for _, key := range sortedKeys(headers) {
			buf.WriteString(fmt.Sprintf("    %s: %s\n", f.colors.HeaderKey.Sprint(key), headers[key]))
		}
	}

	if req.HasBody() {
		buf.WriteString("  Body: ")
		switch body := req.Body().(type) {
		case []byte:
			buf.WriteString(formatJSONString(string(body)))
		case url.Values:
			buf.WriteString(body.Encode())
		default:
			jsonBody, err := json.Marshal(body)
			if err != nil {
				buf.WriteString(fmt.Sprintf("%v", body))
			} else {
				buf.WriteString(formatJSONString(string(jsonBody)))
			}
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatResult formats a result for display
func (f *Formatter) FormatResult(result *tetherhttp.Result) string {
	var buf strings.Builder

	status := "no response"
	if code, ok := result.Status(); ok {
		status = fmt.Sprintf("%d", code)
	}
	icon := SuccessIcon(f.NoColor)
	if !result.Success() {
		icon = ErrorIcon(f.NoColor)
	}

	buf.WriteString(fmt.Sprintf("◀ RESPONSE: %s %s (%s, %s)\n",
		icon,
		f.colors.Status(result).Sprint(status),
		formatDuration(result.Elapsed()),
		plural(result.Attempts(), "attempt")))

	if result.Error() != "" {
		buf.WriteString(fmt.Sprintf("  Error: %s %s\n",
			f.colors.Kind.Sprintf("[%s]", result.Kind()),
			f.colors.Error.Sprint(result.Error())))
	}

	if f.Verbose {
		buf.WriteString(fmt.Sprintf("  URL: %s\n", f.colors.URL.Sprint(result.URL())))
		if id := result.RequestID(); id != "" {
			buf.WriteString(fmt.Sprintf("  Request ID: %s\n", f.colors.Dim.Sprint(id)))
		}
		headers := result.Headers()
		if len(headers) > 0 {
			buf.WriteString("  Headers:\n")
			for _, key := range sortedKeys(headers) {
				for _, value := range headers[key] {
					buf.WriteString(fmt.Sprintf("    %s: %s\n", f.colors.HeaderKey.Sprint(key), value))
				}
			}
		}
	}

	if body := formatPayload(result.Payload()); body != "" {
		buf.WriteString("  Body:\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatSummary formats a latency summary for display
func (f *Formatter) FormatSummary(s metrics.Summary) string {
	var buf strings.Builder

	buf.WriteString(f.colors.Highlight.Sprint("Summary") + "\n")
	buf.WriteString(fmt.Sprintf("  Requests:   %d (%s ok, %s failed)\n",
		s.Total,
		f.colors.Success.Sprint(s.Success),
		f.colors.Error.Sprint(s.Failed)))
	buf.WriteString(fmt.Sprintf("  Attempts:   %d\n", s.Attempts))
	buf.WriteString(fmt.Sprintf("  Success:    %.1f%%\n", s.SuccessRate()*100))
	buf.WriteString(fmt.Sprintf("  Throughput: %.1f req/s\n", s.Throughput()))
	buf.WriteString(fmt.Sprintf("  Latency:    min=%s mean=%s p50=%s p90=%s p99=%s max=%s\n",
		formatDuration(s.Min), formatDuration(s.Mean), formatDuration(s.P50),
		formatDuration(s.P90), formatDuration(s.P99), formatDuration(s.Max)))

	return buf.String()
}

func formatPayload(payload any) string {
	switch p := payload.(type) {
	case nil:
		return ""
	case string:
		if p == "" {
			return ""
		}
		return "  " + formatJSONString(p)
	case []byte:
		return fmt.Sprintf("  <%d bytes>", len(p))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("  %v", payload)
	}
	return "  " + formatJSONString(string(data))
}

// formatJSONString attempts to pretty-print a JSON string
func formatJSONString(s string) string {
	var prettyJSON bytes.Buffer
	err := json.Indent(&prettyJSON, []byte(s), "  ", "  ")
	if err != nil {
		return s
	}
	return prettyJSON.String()
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
