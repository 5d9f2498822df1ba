package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the mediansim CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mediansim",
		Short: "Run Max externals against a simulated host",
		Long: `mediansim registers the bundled example externals with an in-memory
Max host, then creates objects, sends messages, runs DSP and matrix
calculations as listed in a YAML scenario.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "scenario file path")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newClassesCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mediansim version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println(cmd.Root().Version)
			return nil
		},
	}
}
