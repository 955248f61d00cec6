// Package app wires the runner together: logger, pipeline definition, step
// registry, run history, and the engine that executes runs.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pipewerk/pipewerk/internal/config"
	"github.com/pipewerk/pipewerk/internal/ctxlog"
	"github.com/pipewerk/pipewerk/internal/engine"
	"github.com/pipewerk/pipewerk/internal/history"
	"github.com/pipewerk/pipewerk/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	model    *config.Model
	engine   *engine.Engine
	store    *history.Store
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registry. Config
// failures at this stage are fatal startup errors and panic; main recovers
// them into a clean exit.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, converter, err := loader.Load(ctx, appConfig.PipelinePath)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline definition: %w", err))
	}
	logger.Debug("Pipeline definition loaded into unified model.", "pipeline", model.Pipeline.Name)

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All step modules registered.", "count", len(modules))

	if err := reg.ValidateModel(model); err != nil {
		// A mismatch between the definition and the compiled-in step kinds
		// cannot be recovered at runtime.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	var store *history.Store
	engineOpts := []engine.Option{}
	if appConfig.HistoryPath != "" {
		store, err = history.Open(appConfig.HistoryPath)
		if err != nil {
			panic(fmt.Errorf("failed to open run history: %w", err))
		}
		engineOpts = append(engineOpts, engine.WithRecorder(store))
		logger.Debug("Run history opened.", "path", appConfig.HistoryPath)
	}

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		model:    model,
		engine:   engine.New(reg, converter, engineOpts...),
		store:    store,
	}
}

// Close releases the app's resources.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded pipeline model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// History returns the run-history store, or nil when history is disabled.
func (a *App) History() *history.Store {
	return a.store
}
