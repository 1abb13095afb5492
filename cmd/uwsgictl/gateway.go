package main

import (
	"strings"

	"github.com/danmuck/uwsgictl/internal/config"
	"github.com/danmuck/uwsgictl/internal/gateway"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newGatewayCmd() *cobra.Command {
	var (
		path string
		addr string
	)
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Serve HTTP and forward every request to a uwsgi backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadGatewayConfig(path)
			if err != nil {
				return err
			}
			if a := strings.TrimSpace(addr); a != "" {
				cfg.Addr = a
			}
			backend, err := cfg.Backend.NewClient()
			if err != nil {
				return err
			}
			gw := gateway.New(cfg.Name, cfg.Addr, cfg.CorsOrigins, backend)
			log.Info().
				Str("gateway", cfg.Name).
				Str("backend", cfg.Backend.Name).
				Str("backend_addr", cfg.Backend.Address).
				Msg("gateway_backend")
			return gw.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&path, "config", "gateway.toml", "gateway config TOML file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override")
	return cmd
}
