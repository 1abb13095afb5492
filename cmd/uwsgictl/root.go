package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=x.y.z"
var version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "uwsgictl",
		Short: "Talk to uwsgi application servers directly or through an HTTP gateway",
		Long: `uwsgictl sends HTTP-style requests to a uwsgi application server over
its native binary protocol. It can issue one-off requests, serve an HTTP
gateway in front of a backend, and write starter configuration files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRequestCmd(),
		newGatewayCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show uwsgictl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "uwsgictl version %s\n", version)
			return nil
		},
	}
}
