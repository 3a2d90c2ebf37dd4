package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/five82/panelwatch/internal/logline"
	"github.com/five82/panelwatch/internal/logtail"
)

// newTailCmd creates the "panelwatch tail" subcommand.
func newTailCmd() *cobra.Command {
	var (
		lines   int
		decoded bool
	)
	cmd := &cobra.Command{
		Use:   "tail <log-file>",
		Short: "Print the last lines of a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			got, err := logtail.Read(args[0], lines)
			if err != nil {
				return fmt.Errorf("tail: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, line := range got {
				if decoded {
					ev, ok := logline.Decode(line)
					if !ok {
						continue
					}
					line = formatEvent(ev)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "number of lines (0 for all)")
	cmd.Flags().BoolVar(&decoded, "decoded", false, "only tagged lines, formatted like follow")
	return cmd
}
