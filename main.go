package main

import (
	"os"

	"github.com/cottand/typeflow/cmd"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "typeflow [subcommand]",
	Short:        "typeflow infers the types flowing through a program, incrementally",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.CheckCmd)
	rootCmd.AddCommand(cmd.DeclsCmd)
	rootCmd.AddCommand(cmd.ModuleCmd)
	rootCmd.AddCommand(cmd.HoverCmd)
}
