package commands

import (
	"context"

	"github.com/spf13/cobra"

	"vortex/internal/config"
)

// ServerStartFunc starts the daemon API and blocks until the context is
// cancelled. Injected by the app so this package stays free of server
// dependencies.
type ServerStartFunc func(ctx context.Context, port int) error

// ServerCommand creates the daemon server command
func ServerCommand(cfg *config.GlobalConfig, start ServerStartFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the vortex daemon API",
		Long: `Run the HTTP daemon exposing workspaces and sessions over REST, with
websocket attach streaming. Blocks until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetInt("port")
			if port == 0 {
				port = cfg.Server.Port
			}
			return start(cmd.Context(), port)
		},
	}
	cmd.Flags().IntP("port", "p", 0, "Port to listen on (defaults to configured port)")
	return cmd
}
