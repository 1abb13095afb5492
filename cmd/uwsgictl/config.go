package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/uwsgictl/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	var (
		kind  string
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a starter gateway or client profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config to %s\n", kind, args[0])
			return nil
		},
	}
	initCmd.Flags().StringVar(&kind, "kind", "client", "config kind: client or gateway")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd, newConfigValidateCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Check a gateway config or client profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			switch strings.ToLower(strings.TrimSpace(kind)) {
			case "gateway":
				if _, err := config.LoadGatewayConfig(path); err != nil {
					return err
				}
			case "client", "profile":
				backend, err := loadProfile(path)
				if err != nil {
					return err
				}
				if err := config.ValidateBackend(backend); err != nil {
					return fmt.Errorf("profile invalid: %w", err)
				}
			default:
				return fmt.Errorf("unknown config kind: %s", kind)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config valid: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "client", "config kind: client or gateway")
	return cmd
}
