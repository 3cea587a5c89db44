package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codexbar/internal/version"
)

func main() {
	if os.Getenv("CODEXBAR_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts reportOptions

	root := &cobra.Command{
		Use:   "codexbar",
		Short: "Print usage and quota status for AI coding assistants.",
		Long: "codexbar prints one report with the usage windows of your Claude Code, Codex, Cursor,\n" +
			"GitHub Copilot and Kimi Code accounts, and can tell which of them is active in the\n" +
			"focused window. It is meant to be polled by a status bar.",
		Version:       version.String(),
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	flags := root.Flags()
	flags.BoolVarP(&opts.all, "all", "a", false, "report every configured provider")
	flags.StringVarP(&opts.provider, "provider", "p", "", "report a single provider by id")
	flags.BoolVarP(&opts.detect, "detect", "d", false, "detect the provider active in the focused window")
	flags.StringVarP(&opts.format, "format", "f", "json", "output format: json or text")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "settings file (default $CODEXBAR_CONFIG or ~/.config/codexbar/settings.json)")

	root.AddCommand(newProvidersCommand(&opts.configPath))
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "codexbar "+version.String())
		},
	}
}
