// Mini-AGI orchestration server.
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

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"

	"github.com/miniagi/miniagi"
	"github.com/miniagi/miniagi/config"
	"github.com/miniagi/miniagi/logging"
	"github.com/miniagi/miniagi/memory"
	"github.com/miniagi/miniagi/model"
	anthropictransport "github.com/miniagi/miniagi/model/anthropic"
	ollamatransport "github.com/miniagi/miniagi/model/ollama"
	openaitransport "github.com/miniagi/miniagi/model/openai"
	"github.com/miniagi/miniagi/server"
	"github.com/miniagi/miniagi/tool"
)

func main() {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(slogger)
	logger := logging.NewLogger(&logging.Config{
		Level:     slog.LevelInfo,
		Format:    "json",
		Output:    os.Stdout,
		Component: "engine",
	})

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "provider", cfg.Provider, "model", cfg.Model)

	transport, err := newTransport(cfg)
	if err != nil {
		slog.Error("Failed to initialize LLM transport", "error", err)
		os.Exit(1)
	}

	store, err := memory.Open(cfg.DBPath, func(o *memory.Options) {
		o.Logger = logger
		o.MaxSizeMB = cfg.DBMaxSizeMB
		o.WarnSizeMB = cfg.DBWarnSizeMB
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	if err := store.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	if status := store.CheckSizeLimits(); status.Status != "ok" {
		slog.Warn("Database size check", "status", status.Status, "message", status.Message)
		result, err := store.AutoCleanup(context.Background())
		if err != nil {
			slog.Error("Automatic cleanup failed", "error", err)
			os.Exit(1)
		}
		if result.Performed {
			slog.Info("Automatic cleanup complete",
				"sessions_deleted", result.SessionsDeleted, "cleanup_days", result.CleanupDays)
		}
	}

	engine, err := miniagi.New(func(o *miniagi.Options) {
		o.Transport = transport
		o.Store = store
		o.PersonaDir = cfg.PersonaDir
		o.MaxSteps = cfg.MaxSteps
		o.Logger = logger
		o.ExtraTools = []tool.Tool{
			tool.NewMCPTool("mcp_filesystem", "Filesystem operations via MCP bridge", cfg.MCPFilesystemURL),
			tool.NewMCPTool("mcp_trader", "Trading data and analysis via MCP bridge", cfg.MCPTraderURL),
		}
	})
	if err != nil {
		slog.Error("Failed to initialize engine", "error", err)
		os.Exit(1)
	}

	srv := server.New(engine.Orchestrator(), store, engine.Personas(), transport,
		func(o *server.Options) {
			o.CORSOrigins = cfg.CORSOrigins
			o.Temperature = cfg.Temperature
			o.ArchiveDir = cfg.ArchiveDir
			o.Logger = logger
		})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // orchestration loops can be slow
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// newTransport builds the LLM transport selected by LLM_PROVIDER.
func newTransport(cfg *config.Config) (model.Transport, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollamatransport.NewTransport(func(o *ollamatransport.Options) {
			o.Model = cfg.Model
			o.BaseURL = cfg.OllamaURL
			o.Temperature = cfg.Temperature
		})
	case config.ProviderZAI:
		return openaitransport.NewTransport(func(o *openaitransport.Options) {
			o.Model = cfg.Model
			o.APIKey = cfg.ZAIAPIKey
			o.BaseURL = cfg.ZAIBaseURL
			o.Temperature = cfg.Temperature
			o.Provider = "zai"
		}), nil
	case config.ProviderOpenAI:
		return openaitransport.NewTransport(func(o *openaitransport.Options) {
			o.Model = cfg.Model
			o.APIKey = cfg.OpenAIKey
			o.Temperature = cfg.Temperature
		}), nil
	case config.ProviderAnthropic:
		return anthropictransport.NewTransport(func(o *anthropictransport.Options) {
			o.Model = anthropic.Model(cfg.Model)
			o.APIKey = cfg.AnthropicKey
			o.Temperature = cfg.Temperature
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
