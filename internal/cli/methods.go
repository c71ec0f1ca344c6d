package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	tetherhttp "github.com/wesleyorama2/tether/internal/http"
)

// newMethodCmd builds the command for one HTTP method, e.g. "tether get URL".
func newMethodCmd(method string, opts *rootOptions) *cobra.Command {
	flags := &requestFlags{}
	withBody := method == "POST" || method == "PUT" || method == "PATCH" || method == "DELETE"

	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " URL",
		Short: fmt.Sprintf("Make a %s request to the specified URL", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientOpts, err := flags.clientOptions(cmd, opts)
			if err != nil {
				return err
			}
			reqOpts, err := flags.requestOptions()
			if err != nil {
				return err
			}

			client := tetherhttp.NewClient(clientOpts...)
			req := tetherhttp.NewRequest(method, normalizeTarget(args[0]), reqOpts...)
			return execute(cmd, client, req, flags, checks{extract: flags.extract, schema: flags.schema})
		},
	}
	flags.register(cmd, withBody)

	return cmd
}
