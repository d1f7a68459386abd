// Package cli wires the cobra command tree over the operations layer
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"vortex/internal/cli/commands"
	"vortex/internal/config"
	"vortex/internal/operations"
)

// Manager handles CLI operations
type Manager struct {
	config  *config.GlobalConfig
	rootCmd *cobra.Command
}

// New creates a new CLI manager
func New(cfg *config.GlobalConfig) *Manager {
	m := &Manager{config: cfg}
	m.rootCmd = createRootCommand()
	return m
}

// SetOperations attaches the operations layer and builds the command
// tree. ServerStart is invoked by the `server` command; it is injected
// so the cli package does not depend on the server package.
func (m *Manager) SetOperations(wsOps *operations.WorkspaceOperations, sessOps *operations.SessionOperations, serverStart commands.ServerStartFunc) {
	m.rootCmd.AddCommand(commands.InitCommand(wsOps))
	m.rootCmd.AddCommand(commands.ImportCommand(wsOps))
	m.rootCmd.AddCommand(commands.TemplatesCommand())
	for _, cmd := range commands.WorkspaceCommands(wsOps) {
		m.rootCmd.AddCommand(cmd)
	}
	m.rootCmd.AddCommand(commands.SessionCommands(sessOps))
	m.rootCmd.AddCommand(commands.AttachCommand(sessOps))
	m.rootCmd.AddCommand(commands.ServerCommand(m.config, serverStart))
}

// Execute executes the CLI with the given arguments
func (m *Manager) Execute(args []string) error {
	return m.ExecuteWithContext(context.Background(), args)
}

// ExecuteWithContext executes the CLI with the given arguments and context
func (m *Manager) ExecuteWithContext(ctx context.Context, args []string) error {
	m.rootCmd.SetArgs(args)
	return m.rootCmd.ExecuteContext(ctx)
}
