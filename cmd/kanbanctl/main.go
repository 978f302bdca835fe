package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kanbandash/internal/config"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := config.LoadClient()

	root := &cobra.Command{
		Use:           "kanbanctl",
		Short:         "Terminal client for the kanban board",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Board server URL (KANBAN_URL)")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "Session token (KANBAN_TOKEN)")
	flags.StringVar(&cfg.UserID, "user", cfg.UserID, "User id of the session (KANBAN_USER_ID)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (LOG_LEVEL)")
	flags.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP request timeout (KANBAN_HTTP_TIMEOUT)")

	root.AddCommand(loginCmd(cfg))
	root.AddCommand(boardCmd(cfg))
	root.AddCommand(addCmd(cfg))
	root.AddCommand(archiveCmd(cfg))
	root.AddCommand(moveCmd(cfg))
	root.AddCommand(watchCmd(cfg))

	return root
}
