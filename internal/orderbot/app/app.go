// Package app wires the order bot together: store, catalog, stage machine,
// natural-language pipeline, Matrix transport and the abandoned-session
// sweeper.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dcosta/orderbot/internal/orderbot/bot"
	"github.com/dcosta/orderbot/internal/orderbot/catalog"
	"github.com/dcosta/orderbot/internal/orderbot/matrix"
	"github.com/dcosta/orderbot/internal/orderbot/nlp"
	"github.com/dcosta/orderbot/internal/orderbot/stages"
	"github.com/dcosta/orderbot/internal/orderbot/store"
	"github.com/dcosta/orderbot/internal/orderbot/sweep"
)

// Config holds application configuration.
type Config struct {
	DatabasePath string
	// CatalogPath points to a YAML catalog file. When empty the built-in
	// catalog is used.
	CatalogPath string
	Matrix      matrix.Config
	// OperatorRoom receives new-order notices. When empty, notices are logged.
	OperatorRoom string

	// NLPAPIKey enables the natural-language order pipeline. When empty,
	// only the menu-driven conversation is available.
	NLPAPIKey string
	// NLPModel is the chat model used for order extraction.
	// Defaults to "gpt-4o-mini" when empty.
	NLPModel string
	// NLPEndpoint is the base URL of the LLM API, e.g.:
	//   https://api.openai.com/v1  (default)
	//   http://localhost:11434/v1  (Ollama)
	NLPEndpoint string
	// NLPTimeout bounds a single classification call.
	NLPTimeout time.Duration

	// SweepInterval is the cadence of the abandoned-session sweep.
	SweepInterval time.Duration
	// AbandonAfter is the idle threshold past which a cart-open session gets
	// a reminder.
	AbandonAfter time.Duration
}

// App is the assembled order bot.
type App struct {
	config     *Config
	store      *store.Store
	matrix     *matrix.Client
	dispatcher *bot.Dispatcher
	sweeper    *sweep.Sweeper
}

// New creates the application from config.
func New(config *Config) (*App, error) {
	slog.Info("opening database", "path", config.DatabasePath)
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cat, err := loadCatalog(config.CatalogPath)
	if err != nil {
		st.Close()
		return nil, err
	}
	slog.Info("catalog ready", "items", cat.Len())

	// Inject the store so the Matrix client persists its sync token
	// across restarts.
	matrixCfg := config.Matrix
	matrixCfg.Store = st
	matrixCfg.OperatorRoom = config.OperatorRoom
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize Matrix client: %w", err)
	}

	var provider nlp.Provider
	if config.NLPAPIKey != "" {
		provider, err = nlp.NewOpenAI(nlp.Config{
			APIKey:  config.NLPAPIKey,
			BaseURL: config.NLPEndpoint,
			Model:   config.NLPModel,
			Timeout: config.NLPTimeout,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to initialize order classifier: %w", err)
		}
		slog.Info("natural-language ordering enabled", "model", config.NLPModel)
	} else {
		slog.Info("no NLP API key configured, menu-driven ordering only")
	}

	pipeline := nlp.NewPipeline(provider, cat, config.NLPTimeout)
	dispatcher := bot.New(st, stages.New(cat), pipeline, matrixClient, config.OperatorRoom)
	sweeper := sweep.New(st, matrixClient, config.SweepInterval, config.AbandonAfter)

	return &App{
		config:     config,
		store:      st,
		matrix:     matrixClient,
		dispatcher: dispatcher,
		sweeper:    sweeper,
	}, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		slog.Info("no catalog file configured, using the built-in catalog")
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

// Run starts the bot and blocks until an interrupt signal arrives.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.dispatcher.HandleMessage); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	go a.sweeper.Run(ctx)

	slog.Info("order bot is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop shuts down the transport and closes the store.
func (a *App) Stop() {
	a.matrix.Stop()
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close store", "err", err)
	}
}
