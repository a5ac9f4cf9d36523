// SPDX-License-Identifier: MIT

// Command lazykitd is a small HTTP daemon built on the lazykit packages:
// configuration through a lazy holder, localized messages, per-request
// lazy values and a memoized visitor lookup.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmoldow/lazykit/internal/daemon"
	"github.com/jmoldow/lazykit/internal/log"
	"github.com/jmoldow/lazykit/internal/telemetry"
	"github.com/jmoldow/lazykit/internal/version"
	"github.com/jmoldow/lazykit/lazyconf"
)

const serviceName = "lazykitd"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	listenAddr := flag.String("listen", "", "API listen address (overrides config)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	log.Configure(log.Config{
		Level:   "info",
		Service: serviceName,
		Version: version.Version,
	})

	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Determine config path:
	// - Explicit via --config or LAZYKITD_CONFIG
	// - Otherwise auto-load ./lazykitd.yaml if it exists
	explicitConfigPath := strings.TrimSpace(*configPath)
	if explicitConfigPath == "" {
		explicitConfigPath = strings.TrimSpace(lazyconf.ParseString("LAZYKITD_CONFIG", ""))
	}
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		if _, err := os.Stat("lazykitd.yaml"); err == nil {
			effectiveConfigPath = "lazykitd.yaml"
		}
	}

	// Load configuration with precedence: ENV > File > Defaults. The
	// holder stays around for hot reload; this Get is its first read.
	holder := daemon.NewConfigHolder(effectiveConfigPath)
	cfg, err := holder.Get()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// Re-configure logger with loaded configuration
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: serviceName,
		Version: version.Version,
	})

	if explicitConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", explicitConfigPath).
			Msg("loaded configuration from file")
	} else if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file(auto)").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	// The -listen flag beats everything, including ENV.
	if strings.TrimSpace(*listenAddr) != "" {
		cfg.Listen = strings.TrimSpace(*listenAddr)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialize telemetry")
	}

	srv, err := daemon.NewServer(log.WithComponent("server"), holder)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "server.creation_failed").
			Msg("failed to create server")
	}

	serverCfg := daemon.DefaultServerConfig(cfg.Listen)
	serverCfg.MaxConns = cfg.Limits.MaxConns
	serverCfg.ShutdownTimeout = lazyconf.ParseDuration("LAZYKITD_SHUTDOWN_TIMEOUT", serverCfg.ShutdownTimeout)

	deps := daemon.Deps{
		Logger:      logger,
		APIHandler:  srv.Routes(cfg),
		MetricsAddr: cfg.MetricsListen,
	}
	if cfg.MetricsListen != "" {
		deps.MetricsHandler = promhttp.Handler()
	}

	mgr, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation_failed").
			Msg("failed to create daemon manager")
	}

	// Shutdown order is LIFO: server resources close before telemetry
	// flushes its last spans.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("server", srv.Close)

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Listen).
		Msg("starting lazykitd")

	logger.Info().Msgf("→ SQLite: %s (opens on first use)", cfg.SQLitePath)
	logger.Info().Msgf("→ Memo backend: %s", cfg.Memo.Backend)
	logger.Info().Msgf("→ Default language: %s", cfg.DefaultLanguage)
	if cfg.Limits.GlobalRPS > 0 {
		logger.Info().Msgf("→ Global throttle: %.0f requests/second", cfg.Limits.GlobalRPS)
	}
	if cfg.Limits.RequestsPerMinute > 0 {
		logger.Info().Msgf("→ Rate limit: %d requests/minute per IP", cfg.Limits.RequestsPerMinute)
	}
	if cfg.MetricsListen != "" {
		logger.Info().Msgf("→ Metrics: %s", cfg.MetricsListen)
	}
	if cfg.Telemetry.Enabled {
		logger.Info().Msgf("→ Tracing: %s via %s", cfg.Telemetry.Endpoint, cfg.Telemetry.ExporterType)
	}

	apply := func(c daemon.Config) {
		log.Configure(log.Config{
			Level:   c.LogLevel,
			Service: serviceName,
			Version: version.Version,
		})
		srv.ApplyConfig(c)
	}

	app := daemon.NewApp(logger, mgr, holder, apply)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
