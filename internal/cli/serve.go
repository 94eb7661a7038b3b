package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/omecollection/internal/server"
)

// serveCommand serves stored collections over HTTP until interrupted.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored collections over HTTP",
		Long: `Serve exposes the configured annotation store read-only:

  GET /healthz                      liveness and build information
  GET /collections/{id}             the rebuilt collection document
  GET /collections/{id}/records     its flat records`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = c.config().Server.Addr
			}

			tr, s, err := c.openTransfer(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			return server.New(tr, c.Logger).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
