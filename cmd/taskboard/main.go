// Command taskboard is a collaborative Kanban board: a terminal UI, an HTTP
// API and a notification watcher over one shared document store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/model"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "taskboard",
		Short:   "Collaborative Kanban board in the terminal",
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "path to the config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(watchCmd(&configPath))
	rootCmd.AddCommand(loginCmd(&configPath))
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(mailboxCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
