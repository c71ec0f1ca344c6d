// Package config loads tether collection files for programmatic use.
//
// A collection file, in YAML or JSON, defines:
//   - client: base URL, timeout, retries, default headers and pool limits
//   - log: level and format
//   - environments: base URLs, headers and variables per target
//   - requests: named request templates with {{variable}} placeholders
//
// Basic Usage:
//
//	cfg, err := config.LoadConfig("tether.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts, err := cfg.ClientOptions("staging")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := http.NewClient(opts...)
//	defer client.Close()
//
//	req := cfg.Requests["getUser"].Build(cfg.Vars("staging"))
//	result := client.Do(ctx, req)
//
// LoadConfig applies TETHER_* environment overrides (for example
// TETHER_BASE_URL or TETHER_MAX_RETRIES) and validates the result. Every
// problem found is reported at once as ValidationErrors.
package config
