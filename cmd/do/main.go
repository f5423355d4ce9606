package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/magiclink/cmd/do/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "do",
		Short:        "Development and maintenance tools for magiclink",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.CleanupCmd())
	rootCmd.AddCommand(cmd.LinkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
