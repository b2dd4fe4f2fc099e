package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tripchat/internal/assistant"
	"tripchat/internal/config"
	"tripchat/internal/domain"
	"tripchat/internal/lookup"
	"tripchat/internal/provider"
	"tripchat/internal/server"
	"tripchat/internal/session"
	"tripchat/internal/store"
	"tripchat/internal/tool"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "tripchat",
		Short:   "tripchat: real-time trip co-planning server",
		Long:    "tripchat runs per-trip group chat rooms with a shared itinerary and a tool-using planning assistant.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.tripchat/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.DefaultConfigPath()
			if configPath != "" {
				cfgPath = config.ExpandPath(configPath)
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tripchat server",
		RunE:  runServe,
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	// Graceful shutdown on signals.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	tools := tool.NewRegistry()
	var places *lookup.PlacesClient
	if cfg.Google.MapsAPIKey != "" {
		places = lookup.NewPlacesClient(lookup.PlacesConfig{APIKey: cfg.Google.MapsAPIKey, Logger: logger})
	} else {
		logger.Warn("google.mapsApiKey not set, place tools disabled")
	}
	var travel *lookup.AmadeusClient
	if cfg.Amadeus.APIKey != "" {
		travel = lookup.NewAmadeusClient(lookup.AmadeusConfig{
			APIKey:    cfg.Amadeus.APIKey,
			APISecret: cfg.Amadeus.APISecret,
			Logger:    logger,
		})
	} else {
		logger.Warn("amadeus credentials not set, flight and hotel tools disabled")
	}

	// Typed nils must not reach the registry as non-nil interfaces.
	var placesAPI tool.PlacesAPI
	if places != nil {
		placesAPI = places
	}
	var travelAPI tool.TravelAPI
	if travel != nil {
		travelAPI = travel
	}
	if err := tool.RegisterTravelTools(tools, placesAPI, travelAPI); err != nil {
		return err
	}
	logger.Info("tools registered", "tools", tools.Names())

	var planner domain.Planner
	var orch *assistant.Orchestrator
	if cfg.OpenAI.APIKey != "" {
		planner = provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			APIBase: cfg.OpenAI.APIBase,
			Model:   cfg.OpenAI.Model,
			Logger:  logger,
		})
		orch = assistant.NewOrchestrator(assistant.OrchestratorConfig{
			Planner:   planner,
			Tools:     tools,
			Logger:    logger,
			MaxRounds: cfg.Assistant.MaxRounds,
		})
	} else {
		logger.Warn("openai.apiKey not set, assistant disabled")
	}

	ws := session.NewHandler(session.HandlerConfig{
		Registry:     session.NewRegistry(logger),
		Store:        st,
		Planner:      planner,
		Orchestrator: orch,
		Prompts:      assistant.NewPromptBuilder(cfg.Assistant.HistoryLimit),
		Logger:       logger,
		StatusBuffer: cfg.Assistant.StatusBuffer,
		HistoryLimit: cfg.Assistant.HistoryLimit,
	})

	srv := server.New(server.Config{
		Store:   st,
		WS:      ws,
		Planner: planner,
		Logger:  logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "version", version)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
