// Package app wires configuration, storage and the tool engine together.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"

	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/engine"
	"taskline/internal/logging"
	"taskline/internal/mcpserver"
	"taskline/internal/migrate"
	"taskline/internal/registry"
	"taskline/internal/repo"
	"taskline/internal/server"
	"taskline/internal/tasks"
	"taskline/internal/telemetry"
)

type Options struct {
	Workspace string
	Config    *config.Config
	// LogWriter receives log output; stderr when nil.
	LogWriter io.Writer
	Version   string
}

type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	DB       *sql.DB
	Repo     repo.Repo
	Tasks    *tasks.Service
	Registry *registry.Registry
	Engine   engine.Engine
	Version  string

	shutdown []func(context.Context) error
}

// Open builds the full stack: logger, database, migrations, store, tools
// and engine.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, opts.LogWriter)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Path: cfg.Storage.Path})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	version, err := migrate.Apply(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug().Int("schema_version", version).Msg("database ready")

	a := &App{
		Config:   cfg,
		Log:      log,
		DB:       conn,
		Repo:     repo.New(conn),
		Registry: registry.New(),
		Version:  opts.Version,
	}
	a.shutdown = append(a.shutdown, func(context.Context) error { return conn.Close() })

	a.Tasks = tasks.NewService(a.Repo)
	a.Tasks.DefaultPriority = cfg.DefaultPriority()
	if err := tasks.Register(a.Registry, a.Tasks); err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Engine = engine.New(a.Registry, logging.Component(log, "engine"))

	if cfg.Telemetry.Enabled {
		stop, err := telemetry.Setup(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
		})
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.shutdown = append(a.shutdown, stop)
		obs, err := telemetry.GlobalObserver()
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Engine.Observer = obs
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.shutdown = nil
	return errors.Join(errs...)
}

func (a *App) MCPServer() (*mcpsrv.MCPServer, error) {
	return mcpserver.New(a.Engine, mcpserver.Config{
		Name:    "taskline",
		Version: a.Version,
		Log:     logging.Component(a.Log, "mcp"),
	})
}

// HTTPHandler serves the REST API and the MCP streamable HTTP transport on
// one router.
func (a *App) HTTPHandler() (http.Handler, error) {
	mcp, err := a.MCPServer()
	if err != nil {
		return nil, err
	}
	return server.New(server.Config{
		Engine:   a.Engine,
		Repo:     a.Repo,
		BasePath: a.Config.Server.BasePath,
		MCP:      mcpserver.HTTPHandler(mcp),
		MCPPath:  a.Config.Server.MCPPath,
		Log:      logging.Component(a.Log, "http"),
		Version:  a.Version,
	})
}

// HTTPServer wraps HTTPHandler with the configured address and timeouts.
func (a *App) HTTPServer() (*http.Server, error) {
	h, err := a.HTTPHandler()
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      h,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}, nil
}
