// Package main is the entry point for mailsyncd.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tychobrouwer/mailsyncd/internal/buildinfo"
	"github.com/tychobrouwer/mailsyncd/internal/config"
	"github.com/tychobrouwer/mailsyncd/internal/facade"
	"github.com/tychobrouwer/mailsyncd/internal/httpapi"
	"github.com/tychobrouwer/mailsyncd/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 && flag.Arg(0) == "version" {
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
		return
	}

	runServe(logger, *configPath)
}

func runServe(logger *slog.Logger, configPath string) {
	logger.Info("starting mailsyncd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfgPath, err := config.FindConfig(configPath)
	var cfg *config.Config
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			logger.Error("failed to load config", "path", cfgPath, "error", err)
			os.Exit(1)
		}
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	logger.Info("config loaded", "store", cfg.Store.Path, "address", cfg.Listen.Address, "port", cfg.Listen.Port, "accounts", len(cfg.Accounts))

	db, err := sql.Open("sqlite3", cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open cache store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st, err := store.NewStore(db, logger)
	if err != nil {
		logger.Error("failed to initialize cache store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	fac := facade.New(st, logger)
	for _, acct := range cfg.Accounts {
		if _, err := fac.Login(acct.Username, acct.Password, acct.Address, acct.Port); err != nil {
			logger.Error("failed to connect configured account", "username", acct.Username, "address", acct.Address, "error", err)
		}
	}
	if err := fac.SeedConnections(); err != nil {
		logger.Error("failed to seed persisted connections", "error", err)
	}

	server := httpapi.NewServer(cfg.Listen.Address, cfg.Listen.Port, fac, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(); err != nil && ctx.Err() == nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("mailsyncd stopped")
}
