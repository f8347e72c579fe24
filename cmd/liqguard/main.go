// Command liqguard is the entry point for the order-verification service. It
// loads configuration, validates it, wires dependencies, sets up signal
// handling, and starts the application in the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/liqguard/internal/app"
	"github.com/alanyoungcy/liqguard/internal/config"
	"github.com/alanyoungcy/liqguard/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override the configured mode (server or verify)")
	sealKey := flag.String("seal-key", "", "encrypt the configured wallet key into this file and exit")

	var v app.VerifyOptions
	flag.StringVar(&v.Exchange, "exchange", "", "verify: exchange ID")
	flag.StringVar(&v.Pair, "pair", "", "verify: pair ID")
	flag.StringVar(&v.OrderID, "order", "", "verify: order ID")
	flag.StringVar(&v.SKU, "sku", "", "verify: SKU code")
	flag.StringVar(&v.Environment, "env", "", "verify: environment ID")
	flag.StringVar(&v.Principal, "principal", "", "verify: principal amount")
	flag.StringVar(&v.Leverage, "leverage", "", "verify: leverage")
	flag.StringVar(&v.EvidenceFile, "evidence", "", "verify: evidence file")
	flag.StringVar(&v.Language, "lang", "", "verify: report language")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	// Verify mode prints its report on stdout, so logs go to stderr there.
	var logOut io.Writer = os.Stdout
	if cfg.Mode == "verify" || *sealKey != "" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if *sealKey != "" {
		if err := writeSealedKey(cfg, *sealKey); err != nil {
			logger.Error("seal wallet key", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("wallet key sealed", slog.String("path", *sealKey))
		return
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("liqguard starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)
	logger.Debug("effective configuration", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger, app.WithVerifyOptions(v))

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = application.Run(ctx)
	application.Close()
	stop()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("liqguard stopped")
	case errors.Is(err, app.ErrNotVerified):
		os.Exit(2)
	default:
		logger.Error("application exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// writeSealedKey encrypts wallet.private_key with wallet.key_password.
func writeSealedKey(cfg *config.Config, path string) error {
	if cfg.Wallet.PrivateKey == "" || cfg.Wallet.KeyPassword == "" {
		return errors.New("wallet.private_key and wallet.key_password are required")
	}
	blob, err := crypto.SealKey(cfg.Wallet.PrivateKey, cfg.Wallet.KeyPassword)
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o600)
}
