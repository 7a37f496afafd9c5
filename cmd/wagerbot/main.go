package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/wagerbot/config"
	"github.com/alejandrodnm/wagerbot/internal/adapters/ledger"
	"github.com/alejandrodnm/wagerbot/internal/adapters/notify"
	"github.com/alejandrodnm/wagerbot/internal/adapters/onchain"
	"github.com/alejandrodnm/wagerbot/internal/adapters/oracle"
	"github.com/alejandrodnm/wagerbot/internal/adapters/signer"
	"github.com/alejandrodnm/wagerbot/internal/adapters/storage"
	"github.com/alejandrodnm/wagerbot/internal/engine"
	"github.com/alejandrodnm/wagerbot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one reconciliation cycle and exit")
	status := flag.Bool("status", false, "print all ledger bets as a table and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ledgerClient := ledger.NewClient(cfg.Ledger.BaseURL)

	if *status {
		printStatus(ctx, ledgerClient)
		return
	}

	slog.Info("wagerbot starting",
		"config", *configPath,
		"interval", cfg.PollInterval(),
		"workers", cfg.Engine.Workers,
		"once", *once,
	)

	signerClient := signer.NewClient(cfg.Signer.BaseURL, cfg.Signer.APIKey, cfg.Signer.KeyVersion)

	balances, err := onchain.NewBalanceReader(cfg.Chain.RPCURL, cfg.Chain.TokenAddress)
	if err != nil {
		slog.Error("failed to connect to chain rpc", "err", err)
		os.Exit(1)
	}

	transfers, err := onchain.NewTransferClient(cfg.Chain.RPCURL, cfg.Chain.ChainID, cfg.Chain.TokenAddress, signerClient)
	if err != nil {
		slog.Error("failed to create transfer client", "err", err)
		os.Exit(1)
	}

	oracleClient := oracle.NewClient(cfg.Oracle.BaseURL, cfg.OracleTimeout())

	store, err := storage.NewSQLite(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	var notifier ports.Notifier
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			slog.Error("failed to init telegram notifier", "err", err)
			os.Exit(1)
		}
		defer tg.Stop()
		notifier = tg
	} else {
		notifier = notify.NewConsole()
	}

	machine := engine.NewMachine(
		engine.Config{
			EscrowPath:  cfg.Engine.EscrowPath,
			EscrowOwner: cfg.Engine.EscrowOwner,
		},
		ledgerClient, signerClient, balances, oracleClient, transfers, notifier, store,
	)

	reconciler := engine.NewReconciler(
		engine.ReconcilerConfig{
			Interval: cfg.PollInterval(),
			Workers:  cfg.Engine.Workers,
		},
		machine, ledgerClient, store,
	)

	if *once {
		if err := reconciler.RunOnce(ctx); err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := reconciler.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("reconciler exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("wagerbot stopped cleanly")
}

// printStatus fetches every bet from the ledger and renders the operator table.
func printStatus(ctx context.Context, ledgerClient *ledger.Client) {
	bets, err := ledgerClient.GetAllBets(ctx)
	if err != nil {
		slog.Error("failed to fetch bets", "err", err)
		os.Exit(1)
	}
	notify.NewConsole().PrintBets(bets, time.Now())
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
