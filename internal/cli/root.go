package cli

import (
	"github.com/spf13/cobra"
)

// createRootCommand creates the root command with global flags
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vortex",
		Short: "MicroVM development workspace orchestration",
		Long: `vortex turns a project tree into a set of isolated microVM development
environments. It scans a repository for its services, compiles a workspace
configuration, imports existing devcontainer setups, and drives the VMs
through their lifecycle on a krunvm backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	return rootCmd
}
