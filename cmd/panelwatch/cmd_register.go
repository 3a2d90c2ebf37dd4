package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/panelwatch/internal/config"
	"github.com/five82/panelwatch/internal/registration"
)

// newRegisterCmd creates the "panelwatch register" subcommand, used by
// worker scripts to announce their log file.
func newRegisterCmd() *cobra.Command {
	var (
		id         string
		name       string
		logFile    string
		layoutPath string
		dir        string
	)
	cmd := &cobra.Command{
		Use:   "register --id ID --log-file PATH",
		Short: "Register a worker script",
		Long:  "Write a registration record so the dashboard starts tailing the\nscript's log file. Without --layout the default six panels are used.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(dir) == "" {
				cfg, err := config.Load(configFlag(cmd))
				if err != nil {
					return fmt.Errorf("register: %w", err)
				}
				dir = cfg.RegistryDir
			}
			logPath, err := config.ExpandPath(logFile)
			if err != nil {
				return fmt.Errorf("register: log file: %w", err)
			}

			rec := registration.Record{ScriptID: id, Name: name, LogFile: logPath}
			if layoutPath != "" {
				layout, err := registration.LoadLayout(layoutPath)
				if err != nil {
					return fmt.Errorf("register: %w", err)
				}
				rec.Layout = layout
			}

			path, err := registration.Write(dir, rec)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s -> %s\n", rec.ScriptID, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "script id (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the id)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "log file the script writes (required)")
	cmd.Flags().StringVar(&layoutPath, "layout", "", "YAML or JSON panel layout file")
	cmd.Flags().StringVar(&dir, "dir", "", "registry directory (default from config)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("log-file")
	return cmd
}
