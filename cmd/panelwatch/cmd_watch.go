package main

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/five82/panelwatch/internal/app"
)

// newWatchCmd creates the "panelwatch watch" subcommand.
func newWatchCmd() *cobra.Command {
	var (
		poll  time.Duration
		once  bool
		plain bool
	)
	cmd := &cobra.Command{
		Use:   "watch [registry-dir]",
		Short: "Show the live dashboard",
		Long:  "Poll every registered script and show its panels. The interactive\ndashboard is used when stdout is a terminal; otherwise a text snapshot\nis printed every poll interval.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.Options{
				ConfigPath: configFlag(cmd),
				PollEvery:  poll,
				Out:        cmd.OutOrStdout(),
			}
			if len(args) == 1 {
				opts.RegistryDir = args[0]
			}
			switch {
			case once:
				opts.Mode = app.ModeOnce
			case plain || !isTerminal(os.Stdout):
				opts.Mode = app.ModePlain
			default:
				opts.Mode = app.ModeTUI
			}
			return app.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().DurationVar(&poll, "poll", 0, "refresh interval (default from config, 1s)")
	cmd.Flags().BoolVar(&once, "once", false, "poll once, print a text snapshot and exit")
	cmd.Flags().BoolVar(&plain, "plain", false, "print text snapshots even on a terminal")
	return cmd
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newSnapshotCmd creates the "panelwatch snapshot" subcommand.
func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [registry-dir]",
		Short: "Poll once and print the state as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.Options{
				ConfigPath: configFlag(cmd),
				Mode:       app.ModeJSON,
				Out:        cmd.OutOrStdout(),
			}
			if len(args) == 1 {
				opts.RegistryDir = args[0]
			}
			return app.Run(cmd.Context(), opts)
		},
	}
}
