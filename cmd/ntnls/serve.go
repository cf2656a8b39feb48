package main

import (
	"github.com/spf13/cobra"

	"github.com/jeongseonghan/ntn-linksim/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation HTTP API",
		Long: `Serve the simulation API:

  POST /api/run     run one simulation (body: partial config JSON)
  POST /api/sweep   start a background sweep, points stream on /ws
  GET  /api/status  idle or running
  GET  /metrics     Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handlers := server.NewHandlers(a.log, a.metrics, a.parallel)
			return server.NewServer(addr, handlers, a.log).Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "0.0.0.0:8080", "server address")
	return cmd
}
