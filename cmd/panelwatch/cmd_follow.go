package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/panelwatch/internal/filter"
	"github.com/five82/panelwatch/internal/logline"
	"github.com/five82/panelwatch/internal/logtail"
	"github.com/five82/panelwatch/internal/progress"
)

// newFollowCmd creates the "panelwatch follow" subcommand.
func newFollowCmd() *cobra.Command {
	var (
		criteria  filter.Criteria
		fromStart bool
	)
	cmd := &cobra.Command{
		Use:   "follow <log-file>",
		Short: "Stream decoded panel events from a log file",
		Long: "Follow a worker log and print each tagged line as it is written.\n" +
			"--filter takes an expression over level, panel, kind, content,\n" +
			"timestamp, percentage and complete, e.g.\n\n" +
			"  panelwatch follow job.log --filter 'kind == \"progress\" && percentage >= 50'",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eval, err := filter.New(criteria)
			if err != nil {
				return fmt.Errorf("follow: %w", err)
			}
			lines, err := logtail.Follow(cmd.Context(), args[0], fromStart)
			if err != nil {
				return fmt.Errorf("follow: %w", err)
			}
			return printEvents(cmd.OutOrStdout(), cmd.ErrOrStderr(), lines, eval)
		},
	}
	cmd.Flags().StringVar(&criteria.Expr, "filter", "", "expression events must satisfy")
	cmd.Flags().StringSliceVar(&criteria.Levels, "level", nil, "only these levels (repeatable)")
	cmd.Flags().StringSliceVar(&criteria.Panels, "panel", nil, "only these panels (repeatable)")
	cmd.Flags().StringVar(&criteria.Query, "grep", "", "only events whose content contains this text")
	cmd.Flags().BoolVar(&criteria.UseRegex, "regex", false, "treat --grep as a regular expression")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "print the existing file before following")
	return cmd
}

// printEvents writes matching events until lines closes.
func printEvents(out, errOut io.Writer, lines <-chan logtail.Line, eval *filter.Evaluator) error {
	for line := range lines {
		if line.Err != nil {
			fmt.Fprintf(errOut, "panelwatch: %v\n", line.Err)
			continue
		}
		ev, ok := logline.Decode(line.Text)
		if !ok || !eval.Match(ev) {
			continue
		}
		if _, err := fmt.Fprintln(out, formatEvent(ev)); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	return nil
}

// formatEvent renders "HH:MM:SS level   [#panel] content".
func formatEvent(ev logline.Event) string {
	content := ev.Content
	if ev.Kind == logline.KindProgress {
		if d, ok := progress.Extract(ev.Content); ok {
			content = d.Text()
		}
	}
	return fmt.Sprintf("%s %-7s %s %s",
		logline.ClockTime(ev.Timestamp),
		logline.DisplayLevel(ev.Level),
		ev.Tag(),
		strings.TrimSpace(content))
}
