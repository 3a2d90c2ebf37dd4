package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd creates the root panelwatch command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "panelwatch",
		Short:         "Dashboard for tagged worker logs",
		Long:          "panelwatch tails the log files of registered worker scripts and shows\ntheir tagged lines as status panels and progress bars.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("panelwatch {{.Version}}\n")
	cmd.PersistentFlags().String("config", "", "config file (default ~/.config/panelwatch/config.toml)")

	cmd.AddCommand(
		newWatchCmd(),
		newSnapshotCmd(),
		newRegisterCmd(),
		newFollowCmd(),
		newTailCmd(),
	)

	return cmd
}

// configFlag returns the persistent --config value.
func configFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
