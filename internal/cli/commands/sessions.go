package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vortex/internal/backend"
	"vortex/internal/operations"
)

// SessionCommands creates the session management command group
func SessionCommands(sessOps *operations.SessionOperations) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:     "sessions",
		Short:   "Session management commands",
		Aliases: []string{"session"},
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List sessions and their states",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceName, _ := cmd.Flags().GetString("workspace")
			sessions, err := sessOps.ListSessions(cmd.Context(), workspaceName)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VM\tWORKSPACE\tSERVICE\tSTATE\tERROR")
			for _, s := range sessions {
				errText := ""
				if s.Error.Valid {
					errText = s.Error.String
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.VMIdentity, s.WorkspaceName, s.ServiceName, s.State, errText)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringP("workspace", "w", "", "Only show sessions of this workspace")
	sessionsCmd.AddCommand(listCmd)

	orphansCmd := &cobra.Command{
		Use:   "orphans",
		Short: "Report managed VMs that have no session record",
		Long: `Report VMs whose name carries the vortex prefix but that no session
record claims. Orphans are only reported, never deleted; clean them up
manually once you have confirmed they are stale.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orphans, err := sessOps.DetectOrphans(cmd.Context())
			if err != nil {
				return err
			}
			if len(orphans) == 0 {
				fmt.Println("No orphaned VMs")
				return nil
			}
			for _, orphan := range orphans {
				fmt.Printf("orphan: %s\n", orphan.Details)
			}
			return nil
		},
	}
	sessionsCmd.AddCommand(orphansCmd)

	return sessionsCmd
}

// AttachCommand creates the interactive attach command
func AttachCommand(sessOps *operations.SessionOperations) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach <vm-name>",
		Short: "Attach an interactive shell to a running session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell, _ := cmd.Flags().GetString("shell")
			return sessOps.AttachSession(cmd.Context(), args[0], backend.AttachOptions{
				Command: shell,
			})
		},
	}
	cmd.Flags().StringP("shell", "s", "", "Command to run instead of the default shell")
	return cmd
}
