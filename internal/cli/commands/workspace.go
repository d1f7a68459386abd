// Package commands implements the individual CLI commands
package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vortex/internal/operations"
	"vortex/internal/orchestrator"
	"vortex/internal/types"
	"vortex/internal/workspace"
)

// InitCommand creates the workspace initialization command
func InitCommand(wsOps *operations.WorkspaceOperations) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Scan a project tree and generate a workspace configuration",
		Long: `Scan a project tree for services and generate a vortex.toml workspace
configuration next to it. Detection is driven by marker files (package.json,
go.mod, Cargo.toml, ...) and well-known directory names (frontend, api,
worker, ...). The generated file can be hand-edited before the first start.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			name, _ := cmd.Flags().GetString("name")
			template, _ := cmd.Flags().GetString("template")
			backendKind, _ := cmd.Flags().GetString("backend")
			configOnly, _ := cmd.Flags().GetBool("config-only")
			portFlags, _ := cmd.Flags().GetStringArray("port")

			servicePorts, err := parsePortFlags(portFlags)
			if err != nil {
				return err
			}

			spec, err := wsOps.InitWorkspace(cmd.Context(), operations.InitWorkspaceRequest{
				Path:         path,
				Name:         name,
				Template:     template,
				Backend:      types.BackendKind(backendKind),
				ServicePorts: servicePorts,
				ConfigOnly:   configOnly,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Workspace %q initialized with %d service(s)\n", spec.Name, len(spec.Services))
			for _, svc := range spec.Services {
				fmt.Printf("  %-16s %-10s %s\n", svc.Name, svc.ServiceType, svc.Image)
			}
			return nil
		},
	}
	cmd.Flags().StringP("name", "n", "", "Workspace name (defaults to directory name)")
	cmd.Flags().StringP("template", "t", "", "Build from a built-in template instead of scanning (see 'vortex templates')")
	cmd.Flags().StringP("backend", "b", "", "VM backend (krunvm, firecracker, none)")
	cmd.Flags().Bool("config-only", false, "Only write vortex.toml, do not register the workspace")
	cmd.Flags().StringArray("port", nil, "Pin a service port as service=host:guest (repeatable)")
	return cmd
}

// ImportCommand creates the devcontainer import command
func ImportCommand(wsOps *operations.WorkspaceOperations) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <project-path>",
		Short: "Import a devcontainer-based project as a workspace",
		Long: `Import a project carrying a devcontainer.json (or .devcontainer/
devcontainer.json) descriptor. The project files are copied into managed
workspace storage and the descriptor is translated into a vortex.toml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath := args[0]
			descriptorPath, _ := cmd.Flags().GetString("descriptor")
			if descriptorPath == "" {
				found, err := findDescriptor(projectPath)
				if err != nil {
					return err
				}
				descriptorPath = found
			}

			spec, err := wsOps.ImportWorkspace(cmd.Context(), operations.ImportWorkspaceRequest{
				DescriptorPath: descriptorPath,
				ProjectPath:    projectPath,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Workspace %q imported with %d service(s)\n", spec.Name, len(spec.Services))
			return nil
		},
	}
	cmd.Flags().StringP("descriptor", "f", "", "Explicit path to the descriptor file")
	return cmd
}

// TemplatesCommand creates the template catalog listing command
func TemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List built-in environment templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tIMAGE\tDESCRIPTION")
			for _, tpl := range workspace.Templates() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", tpl.Name, tpl.Image, tpl.Description)
			}
			return w.Flush()
		},
	}
}

// WorkspaceCommands creates the workspace lifecycle commands
func WorkspaceCommands(wsOps *operations.WorkspaceOperations) []*cobra.Command {
	commands := []*cobra.Command{}

	upCmd := &cobra.Command{
		Use:   "up [workspace]",
		Short: "Start all services of a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := workspaceArg(wsOps, args)
			if err != nil {
				return err
			}
			results, err := wsOps.StartWorkspace(cmd.Context(), name)
			if err != nil {
				return err
			}
			printResults(results)
			return firstFailure(results)
		},
	}
	commands = append(commands, upCmd)

	stopCmd := &cobra.Command{
		Use:   "stop [workspace]",
		Short: "Stop all running services of a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := workspaceArg(wsOps, args)
			if err != nil {
				return err
			}
			results, err := wsOps.StopWorkspace(cmd.Context(), name)
			if err != nil {
				return err
			}
			printResults(results)
			return firstFailure(results)
		},
	}
	commands = append(commands, stopCmd)

	downCmd := &cobra.Command{
		Use:   "down [workspace]",
		Short: "Tear down a workspace and remove its registration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := workspaceArg(wsOps, args)
			if err != nil {
				return err
			}
			results, err := wsOps.DeleteWorkspace(cmd.Context(), name)
			if err != nil {
				return err
			}
			printResults(results)
			fmt.Printf("Workspace %q deleted\n", name)
			return nil
		},
	}
	commands = append(commands, downCmd)

	listCmd := &cobra.Command{
		Use:     "workspaces",
		Short:   "List registered workspaces",
		Aliases: []string{"ws"},
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := wsOps.ListWorkspaces(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBACKEND\tORIGIN\tCONFIG")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.BackendKind, r.Origin, r.ConfigPath)
			}
			return w.Flush()
		},
	}
	commands = append(commands, listCmd)

	return commands
}

func workspaceArg(wsOps *operations.WorkspaceOperations, args []string) (string, error) {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	return wsOps.ResolveName(name)
}

func printResults(results []orchestrator.ServiceResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tVM\tSTATE")
	for _, res := range results {
		state := string(res.State)
		if res.Skipped {
			state = "skipped"
		}
		if res.Err != nil {
			state += " (" + res.Err.Error() + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.ServiceName, res.VMIdentity, state)
	}
	w.Flush()
}

func firstFailure(results []orchestrator.ServiceResult) error {
	for _, res := range results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// parsePortFlags turns repeated service=host:guest flags into the
// override map the compiler consumes.
func parsePortFlags(flags []string) (map[string][]types.PortMapping, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	out := map[string][]types.PortMapping{}
	for _, flag := range flags {
		parts := strings.SplitN(flag, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --port %q, want service=host:guest", flag)
		}
		pm, err := types.ParsePortMapping(parts[1])
		if err != nil {
			return nil, err
		}
		out[parts[0]] = append(out[parts[0]], pm)
	}
	return out, nil
}

// findDescriptor locates the devcontainer descriptor inside a project
func findDescriptor(projectPath string) (string, error) {
	candidates := []string{
		projectPath + "/.devcontainer/devcontainer.json",
		projectPath + "/.devcontainer.json",
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no devcontainer descriptor found under %s", projectPath)
}
