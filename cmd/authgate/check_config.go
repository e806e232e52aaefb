package main

import (
	"fmt"

	"github.com/MrEthical07/authgate/internal/config"
	"github.com/spf13/cobra"
)

// NewCheckConfigCmd creates the check-config subcommand.
func NewCheckConfigCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and report risky settings",
		Long: `Resolve configuration from the config file, environment and flags,
validate it the way serve would, and print lint warnings for settings
that are legal but risky in production.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			cmd.Printf("configuration OK (strategy %s, env %s)\n", settings.Auth.Strategy, settings.Auth.Environment)

			warnings := settings.Auth.Lint()
			for _, w := range warnings {
				cmd.Printf("warning [%s]: %s\n", w.Code, w.Message)
			}
			if strict && len(warnings) > 0 {
				return fmt.Errorf("%d lint warning(s)", len(warnings))
			}
			return nil
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any lint warning is reported")

	return cmd
}
