package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jumpgo/server/internal/config"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/item"
	"github.com/jumpgo/server/internal/persist"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name, mode string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              jumpgo  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      rollback platform fighter core       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(mode: %s)\033[0m\n\n", name, mode)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.Mode)

	if p := profileMode(cfg.Server.Profile); p != nil {
		defer profile.Start(p, profile.ProfilePath("."), profile.Quiet).Stop()
		printOK("profiling: " + cfg.Server.Profile)
	}

	// 3. Content
	printSection("content")
	content, err := data.LoadContent(cfg.Content.Dir)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}
	printStat("players", content.Players.Count())
	printStat("items", content.Items.Count())
	printStat("maps", content.Maps.Count())

	effects := item.NewEffects()
	if err := item.RegisterStandardEffects(effects); err != nil {
		return fmt.Errorf("item effects: %w", err)
	}
	printStat("item effects", effects.Len())
	fmt.Println()

	matchID := ulid.Make()
	if cfg.Server.MatchID != "" {
		if matchID, err = ulid.Parse(cfg.Server.MatchID); err != nil {
			return fmt.Errorf("server.match_id: %w", err)
		}
	}

	// 4. Replay database, optional
	var repo *persist.ReplayRepo
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		store, err := persist.OpenStore(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer store.Close()
		printOK("PostgreSQL connected")

		version, err := store.Migrate(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("replay schema at version %d", version))
		fmt.Println()
		repo = persist.NewReplayRepo(store)
	}

	switch cfg.Server.Mode {
	case "replay":
		return runReplay(cfg, content, effects, matchID, repo, log)
	case "local":
		return runLocal(cfg, content, effects, matchID, repo, log)
	default:
		return runNetplay(cfg, content, effects, matchID, repo, log)
	}
}

func profileMode(name string) func(*profile.Profile) {
	switch name {
	case "cpu":
		return profile.CPUProfile
	case "mem":
		return profile.MemProfile
	case "trace":
		return profile.TraceProfile
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
