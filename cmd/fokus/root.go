// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/fokushq/fokus/internal/config"
	"github.com/fokushq/fokus/internal/xdg"
)

// configFile is the --config path shared by all subcommands.
var configFile string

// NewRootCmd creates the root command for the fokus CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fokus",
		Short: "Fokus - account lifecycle service",
		Long: `Fokus registers accounts, verifies email addresses with one-time codes,
issues login sessions and runs the forgotten-password reset flow.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file path (YAML, default $XDG_CONFIG_HOME/fokus/config.yaml when present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("fokus %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// loadConfig loads the --config file, or the XDG default when none is given,
// layered under env and the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(path, cmd.Flags())
}
