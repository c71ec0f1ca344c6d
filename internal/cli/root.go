// Package cli implements the tether command line: one-off requests, named
// requests from a collection file, and concurrent batches.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/tether/internal/config"
	"github.com/wesleyorama2/tether/internal/logging"
)

var version = "0.1.0"

// errFailed signals a failed request or check whose details were already
// printed. It only sets the exit code.
var errFailed = errors.New("request failed")

// rootOptions holds the global flags and what PersistentPreRunE derives from
// them.
type rootOptions struct {
	configPath  string
	environment string
	logLevel    string
	logFormat   string

	config *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "tether",
		Short:   "A resilient terminal HTTP client",
		Version: version,
		Long: `Tether sends HTTP requests through a bounded connection pool with
retries and exponential backoff, and reports every outcome as a structured
result instead of an error.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Collection file (YAML or JSON)")
	flags.StringVar(&opts.environment, "env", "", "Environment from the collection file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: console or json")

	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"} {
		cmd.AddCommand(newMethodCmd(method, opts))
	}
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))

	return cmd
}

// setup loads the collection file, if any, and builds the logger. Flags
// take precedence over the file, the file over the defaults.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	if o.configPath != "" {
		cfg, err := config.LoadConfig(o.configPath)
		if err != nil {
			return err
		}
		if o.environment != "" {
			if err := config.ValidateEnvironment(cfg, o.environment); err != nil {
				return err
			}
		}
		o.config = cfg
	}

	logCfg := logging.DefaultConfig()
	if o.config != nil {
		if o.config.Log.Level != "" {
			logCfg.Level = o.config.Log.Level
		}
		if o.config.Log.Format != "" {
			logCfg.Format = o.config.Log.Format
		}
	}
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	if o.logFormat != "" {
		logCfg.Format = o.logFormat
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("error configuring logging: %w", err)
	}
	o.logger = logger
	return nil
}

// requireConfig returns the loaded collection or an error naming the flag.
func (o *rootOptions) requireConfig() (*config.Config, error) {
	if o.config == nil {
		return nil, errors.New("a collection file is required (--config)")
	}
	return o.config, nil
}

// Execute runs the command tree with ctx and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		}
		return 1
	}
	return 0
}
