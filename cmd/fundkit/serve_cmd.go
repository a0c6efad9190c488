package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/fundkit/modules/backer"
	"github.com/dmitrymomot/fundkit/pkg/httpserver"
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web surface and the checkout return trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limiter, err := c.app.authLimiter(cmd.Context())
			if err != nil {
				return err
			}
			cfg := c.app.cfg.HTTP
			if addr != "" {
				cfg.Addr = addr
			}
			srv := httpserver.NewFromConfig(cfg,
				httpserver.WithLogger(c.app.log),
				httpserver.WithStartHook(func(a net.Addr) {
					fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", a)
				}),
			)
			return srv.Run(cmd.Context(), backer.Router(backer.RouterOptions{
				Session:     c.app.session,
				Catalog:     c.app.catalog,
				Donations:   c.app.coord,
				AuthLimiter: limiter,
				Gatherer:    c.app.registry,
				Checks:      c.app.checks,
				Logger:      c.app.log,
			}))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	return cmd
}
