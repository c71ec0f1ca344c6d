package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	tetherhttp "github.com/wesleyorama2/tether/internal/http"
	"github.com/wesleyorama2/tether/internal/output"
	"github.com/wesleyorama2/tether/pkg/jsonpath"
	"github.com/wesleyorama2/tether/pkg/jsonschema"
)

// requestFlags are shared by the method commands and run.
type requestFlags struct {
	headers  []string
	query    []string
	data     string
	jsonBody string
	expect   string
	timeout  time.Duration
	retries  int
	insecure bool
	verbose  bool
	noColor  bool
	format   string
	extract  string
	schema   string
}

func (f *requestFlags) register(cmd *cobra.Command, withBody bool) {
	flags := cmd.Flags()
	flags.StringArrayVarP(&f.headers, "header", "H", nil, "HTTP headers to include, key:value (repeatable)")
	flags.StringArrayVarP(&f.query, "query", "q", nil, "Query parameters, key=value (repeatable)")
	if withBody {
		flags.StringVarP(&f.data, "data", "d", "", "Raw request body")
		flags.StringVar(&f.jsonBody, "json", "", "JSON request body")
		cmd.MarkFlagsMutuallyExclusive("data", "json")
	}
	flags.StringVarP(&f.expect, "expect", "e", "", "Response shape: json, text or bytes")
	f.registerOutput(cmd)
}

// registerOutput adds the client, output and check flags.
func (f *requestFlags) registerOutput(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.DurationVarP(&f.timeout, "timeout", "t", 10*time.Second, "Per-attempt timeout")
	flags.IntVarP(&f.retries, "retries", "r", 2, "Retries after a failed attempt")
	flags.BoolVar(&f.insecure, "insecure", false, "Skip TLS certificate verification")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	flags.StringVarP(&f.format, "output", "o", "text", "Output format: text, json or yaml")
	flags.StringVar(&f.extract, "extract", "", "JSONPath to extract from the payload, e.g. $.token")
	flags.StringVar(&f.schema, "schema", "", "JSON Schema file the payload must satisfy")
}

// clientOptions layers the collection's client section, then explicitly
// set flags, over the client defaults.
func (f *requestFlags) clientOptions(cmd *cobra.Command, opts *rootOptions) ([]tetherhttp.ClientOption, error) {
	var clientOpts []tetherhttp.ClientOption
	if opts.config != nil {
		fromConfig, err := opts.config.ClientOptions(opts.environment)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, fromConfig...)
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") || opts.config == nil {
		clientOpts = append(clientOpts, tetherhttp.WithTimeout(f.timeout))
	}
	if flags.Changed("retries") || opts.config == nil {
		clientOpts = append(clientOpts, tetherhttp.WithMaxRetries(f.retries))
	}
	if f.insecure {
		clientOpts = append(clientOpts, tetherhttp.WithVerifyTLS(false))
	}
	clientOpts = append(clientOpts, tetherhttp.WithLogger(opts.logger))
	return clientOpts, nil
}

// requestOptions converts the header, query, body and expect flags.
func (f *requestFlags) requestOptions() ([]tetherhttp.RequestOption, error) {
	var reqOpts []tetherhttp.RequestOption

	for _, header := range f.headers {
		key, value, err := splitPair(header, ":")
		if err != nil {
			return nil, fmt.Errorf("invalid header %q: %w", header, err)
		}
		reqOpts = append(reqOpts, tetherhttp.WithRequestHeader(key, value))
	}
	for _, param := range f.query {
		key, value, err := splitPair(param, "=")
		if err != nil {
			return nil, fmt.Errorf("invalid query parameter %q: %w", param, err)
		}
		reqOpts = append(reqOpts, tetherhttp.WithQueryParam(key, value))
	}

	switch {
	case f.jsonBody != "":
		var body any
		if err := json.Unmarshal([]byte(f.jsonBody), &body); err != nil {
			return nil, fmt.Errorf("invalid --json body: %w", err)
		}
		reqOpts = append(reqOpts, tetherhttp.WithJSON(body))
	case f.data != "":
		reqOpts = append(reqOpts, tetherhttp.WithData(f.data))
	}

	if f.expect != "" {
		reqOpts = append(reqOpts, tetherhttp.WithShape(tetherhttp.Shape(f.expect)))
	}
	return reqOpts, nil
}

// checks are the payload assertions requested on the command line or in
// the collection file.
type checks struct {
	extract string
	schema  string
}

// execute sends req through client and prints the outcome. It returns
// errFailed when the request or a check failed.
func execute(cmd *cobra.Command, client *tetherhttp.Client, req *tetherhttp.Request, f *requestFlags, c checks) error {
	format, err := output.ParseFormat(f.format)
	if err != nil {
		return err
	}

	var schema *jsonschema.Schema
	if c.schema != "" {
		schema, err = jsonschema.CompileFile(c.schema)
		if err != nil {
			return err
		}
	}
	if c.extract != "" {
		if _, err := jsonpath.Compile(c.extract); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	formatter := output.GetFormatter(format, f.verbose, !colorEnabled(f.noColor, out))

	if format == output.FormatText {
		target, err := req.ResolveURL(client.BaseURL())
		if err != nil {
			target = req.Endpoint()
		}
		fmt.Fprint(out, formatter.FormatRequest(req, target))
	}

	var result *tetherhttp.Result
	err = client.Use(cmd.Context(), func(ctx context.Context, client *tetherhttp.Client) error {
		result = client.Do(ctx, req)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprint(out, ensureNewline(formatter.FormatResult(result)))

	failed := !result.Success()

	if c.extract != "" && result.Payload() != nil {
		value, err := jsonpath.ExtractPayload(result.Payload(), c.extract)
		if err != nil {
			fmt.Fprintf(out, "%s Extract %s: %v\n", output.ErrorIcon(f.noColor), c.extract, err)
			failed = true
		} else {
			fmt.Fprintf(out, "%s = %s\n", c.extract, value)
		}
	}

	if schema != nil && result.Payload() != nil {
		if err := schema.Validate(result.Payload()); err != nil {
			fmt.Fprintf(out, "%s Schema: %v\n", output.ErrorIcon(f.noColor), err)
			failed = true
		} else {
			fmt.Fprintf(out, "%s Schema: valid\n", output.SuccessIcon(f.noColor))
		}
	}

	if failed {
		return errFailed
	}
	return nil
}

// normalizeTarget adds http:// to bare host names. Paths starting with "/"
// stay relative to the configured base URL.
func normalizeTarget(arg string) string {
	if strings.HasPrefix(arg, "/") || isAbsoluteURL(arg) {
		return arg
	}
	return "http://" + arg
}

// isAbsoluteURL reports whether s starts with an http or https scheme and
// has something after it.
func isAbsoluteURL(s string) bool {
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(s, scheme) && len(s) > len(scheme) {
			return true
		}
	}
	return false
}

func splitPair(s, sep string) (string, string, error) {
	key, value, ok := strings.Cut(s, sep)
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected key%svalue", sep)
	}
	return key, strings.TrimSpace(value), nil
}

func colorEnabled(noColor bool, w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return output.UseColor(noColor, f)
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
