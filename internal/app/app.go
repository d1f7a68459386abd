// Package app assembles the application's components and runs the CLI
package app

import (
	"context"
	"fmt"

	"vortex/internal/backend"
	"vortex/internal/cli"
	"vortex/internal/config"
	"vortex/internal/db"
	"vortex/internal/logger"
	"vortex/internal/operations"
	"vortex/internal/orchestrator"
	"vortex/internal/server"
	"vortex/internal/storage"
)

// App represents the main application
type App struct {
	Config  *config.GlobalConfig
	Backend backend.Backend
	DB      *db.DB
	Storage *storage.Manager
	CLI     *cli.Manager
}

// New creates a new application instance
func New() *App {
	return &App{}
}

// Run starts the application
func (a *App) Run(args []string) error {
	return a.RunWithContext(context.Background(), args)
}

// RunWithContext starts the application with a context for cancellation
func (a *App) RunWithContext(ctx context.Context, args []string) error {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.Config = cfg
	logger.SetLevel(cfg.Logging.Level)

	if cfg.Backend.Kind != "" {
		be, err := backend.New(cfg.Backend.Kind, nil)
		if err != nil {
			return err
		}
		a.Backend = be
	} else {
		a.Backend = backend.Detect(ctx, nil)
	}

	dbConfig := db.DefaultConfig()
	if cfg.Storage.DatabasePath != "" {
		dbConfig.DSN = cfg.Storage.DatabasePath
	}
	database, err := db.New(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	a.DB = database
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var st *storage.Manager
	if cfg.Storage.WorkspacesPath != "" {
		st, err = storage.NewAt(cfg.Storage.WorkspacesPath)
	} else {
		st, err = storage.New()
	}
	if err != nil {
		return err
	}
	a.Storage = st

	orch := orchestrator.New(a.Backend, db.NewSessionRepository(database))
	orch.SetVMDefaults(cfg.Backend.MemoryMiB, cfg.Backend.CPUs)
	wsOps := operations.NewWorkspaceOperations(db.NewWorkspaceRepository(database), st, orch)
	sessOps := operations.NewSessionOperations(orch)

	a.CLI = cli.New(cfg)
	a.CLI.SetOperations(wsOps, sessOps, func(ctx context.Context, port int) error {
		srvCfg := server.DefaultConfig()
		srvCfg.Port = port
		return server.New(srvCfg, wsOps, sessOps).Start(ctx)
	})

	if len(args) == 0 {
		return a.CLI.ExecuteWithContext(ctx, []string{"--help"})
	}
	return a.CLI.ExecuteWithContext(ctx, args)
}
