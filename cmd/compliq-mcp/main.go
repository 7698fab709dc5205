// Package main provides the COMPLiQ MCP gateway entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/thebtf/compliq-mcp/internal/compliq"
	"github.com/thebtf/compliq-mcp/internal/config"
	"github.com/thebtf/compliq-mcp/internal/db"
	"github.com/thebtf/compliq-mcp/internal/gateway"
	"github.com/thebtf/compliq-mcp/internal/gateway/sse"
	"github.com/thebtf/compliq-mcp/internal/tools"
	"github.com/thebtf/compliq-mcp/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Parse flags
	port := flag.Int("port", 0, "HTTP listen port (default: 8411)")
	endpoints := flag.String("endpoints", "", "Path to endpoints override file (YAML)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; environment variables win over settings.json
	_ = godotenv.Load()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *endpoints != "" {
		cfg.EndpointsPath = *endpoints
	}
	if *debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if cfg.APIKey == "" {
		log.Warn().Msg("COMPLIQ_API_KEY is not set, upstream requests will be rejected")
	}

	eps, err := compliq.LoadEndpoints(cfg.EndpointsPath, cfg.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.EndpointsPath).Msg("Failed to load endpoint overrides")
	}

	client := compliq.NewClient(compliq.ClientConfig{
		APIKey:    cfg.APIKey,
		Endpoints: eps,
		Timeout:   cfg.UpstreamTimeout(),
	})

	mcpServer := server.NewMCPServer("compliq-mcp", Version)
	tools.NewRegistry(client).Register(mcpServer)

	broadcaster := sse.NewBroadcaster(cfg.HeartbeatInterval())

	// Optional session persistence
	sessions, err := db.Open(db.Config{
		Backend:   cfg.SessionStore,
		Path:      cfg.SessionDBPath,
		RedisAddr: cfg.RedisAddr,
	})
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.SessionStore).Msg("Failed to open session store")
	}
	if sessions != nil {
		defer sessions.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down gateway")
		cancel()
	}()

	startSettingsWatcher()

	svc := gateway.New(cfg, mcpServer, broadcaster, sessions, Version)
	log.Info().Int("port", cfg.Port).Str("version", Version).Msg("Starting COMPLiQ MCP gateway")

	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Gateway error")
	}
}

// startSettingsWatcher exits the process when settings.json changes so a
// supervisor can restart it with the new configuration.
func startSettingsWatcher() {
	settingsPath := config.SettingsPath()
	w, err := watcher.New(settingsPath, func() {
		log.Warn().Str("path", settingsPath).Msg("Settings file changed, exiting for restart...")
		time.Sleep(100 * time.Millisecond) // Give logs time to flush
		os.Exit(0)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
		return
	}
	log.Info().Str("path", settingsPath).Msg("Settings file watcher started")
}
