package cli

import (
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/tether/internal/config"
	tetherhttp "github.com/wesleyorama2/tether/internal/http"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Run a named request from the collection file",
		Long: `Run one request defined under "requests" in the collection file.
Placeholders such as {{userId}} are filled from the selected environment.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.requireConfig()
			if err != nil {
				return err
			}
			if err := config.ValidateRequest(cfg, args[0]); err != nil {
				return err
			}
			reqCfg := cfg.Requests[args[0]]

			clientOpts, err := flags.clientOptions(cmd, opts)
			if err != nil {
				return err
			}
			client := tetherhttp.NewClient(clientOpts...)
			req := reqCfg.Build(cfg.Vars(opts.environment))

			c := checks{extract: reqCfg.Extract, schema: reqCfg.Schema}
			if flags.extract != "" {
				c.extract = flags.extract
			}
			if flags.schema != "" {
				c.schema = flags.schema
			}
			return execute(cmd, client, req, flags, c)
		},
	}
	flags.registerOutput(cmd)

	return cmd
}
