package app

import (
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/swapper/internal/server"
	"github.com/ggonzalez94/swapper/internal/telemetry"
)

func (s *runtimeState) newServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the call data API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = s.settings.ServerAddr
			}
			srv := server.New(s.dispatcher, server.Options{
				RateLimit: s.settings.RateLimit,
				RateBurst: s.settings.RateBurst,
				Project:   s.settings.DefaultProject,
				Metrics:   telemetry.DefaultMetrics(),
				Now:       s.runner.now,
			})
			return srv.Run(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr from config)")
	return cmd
}
