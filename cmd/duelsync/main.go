package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/version"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:          "duelsync",
		Short:        "Game state sync client for two player AR duels",
		Version:      version.Get(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			parsedLogLevel, err := log.ParseLogLevel(opts.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to parse log level: %v", err)
			}
			logger := log.New(os.Stderr, "", log.DefaultLoggerFlag, parsedLogLevel)
			log.SetDefaultLogger(logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (error|warn|info|debug|trace)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}
