// Command airwave is the main entry point for the Airwave radio bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/airwave/internal/app"
	"github.com/MrWong99/airwave/internal/config"
	discordbot "github.com/MrWong99/airwave/internal/discord"
	"github.com/MrWong99/airwave/internal/discord/commands"
	"github.com/MrWong99/airwave/internal/health"
	"github.com/MrWong99/airwave/internal/observe"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout  = 15 * time.Second
	guildWaitTimeout = 30 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "airwave: load %s: %v\n", *envPath, err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "airwave: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "airwave: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("airwave starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName:    "airwave",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := tel.Metrics()

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Discord bot ───────────────────────────────────────────────────────────
	bot, err := discordbot.New(ctx, discordbot.Config{
		Token:    cfg.Discord.Token,
		GuildID:  cfg.Discord.GuildID,
		DJRoleID: cfg.Discord.DJRoleID,
		Bitrate:  cfg.Playback.Bitrate,
	})
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}
	slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)

	application, err := app.New(ctx, cfg, &app.Providers{
		Platform:  bot.Platform(),
		Messenger: bot.Messenger(),
		Locator:   bot.Locator(),
	}, app.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		_ = bot.Close()
		return 1
	}

	svc := application.Service()
	commands.NewRadioCommands(svc, application.Catalog(), bot.Permissions(), bot.Locator()).Register(bot.Router())
	bot.SetVoiceEvents(svc)

	// Resume needs the channel cache; a slow gateway only delays it.
	waitCtx, waitCancel := context.WithTimeout(ctx, guildWaitTimeout)
	if err := bot.WaitGuilds(waitCtx); err != nil {
		slog.Warn("not all guilds arrived before resume", "err", err)
	}
	waitCancel()

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(d config.ConfigDiff, _ *config.Config) {
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		application.ApplyDiff(d)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	}

	// ── Health and metrics server ─────────────────────────────────────────────
	mux := http.NewServeMux()
	checks := append([]health.Checker{{Name: "gateway", Check: bot.CheckGateway}}, application.Checkers()...)
	health.New(checks...).Register(mux)
	mux.Handle("GET /metrics", tel.Handler())
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics, "/healthz", "/readyz", "/metrics")(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	printStartupSummary(cfg)

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})
	g.Go(func() error {
		return application.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	slog.Info("airwave ready, press Ctrl+C to shut down")
	<-gctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	exit := 0
	if watcher != nil {
		watcher.Stop()
	}
	// The application saves playback state before the gateway goes away.
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		exit = 1
	}
	if err := bot.Close(); err != nil {
		slog.Warn("discord bot close error", "err", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		exit = 1
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}

	slog.Info("goodbye")
	return exit
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Airwave · startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Stations        : %-19d ║\n", len(cfg.Stations))
	fmt.Printf("║  Resume backend  : %-19s ║\n", cfg.Resume.Backend)
	fmt.Printf("║  Max retries     : %-19d ║\n", cfg.Playback.MaxRetries)
	fmt.Printf("║  Metadata every  : %-19s ║\n", cfg.Metadata.Interval)
	scope := "global"
	if cfg.Discord.GuildID != "" {
		scope = "guild " + cfg.Discord.GuildID
	}
	if len(scope) > 19 {
		scope = scope[:16] + "…"
	}
	fmt.Printf("║  Commands        : %-19s ║\n", scope)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
