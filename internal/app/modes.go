package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/liqguard/internal/catalog"
	"github.com/alanyoungcy/liqguard/internal/present"
	"github.com/alanyoungcy/liqguard/internal/server"
	"github.com/alanyoungcy/liqguard/internal/server/handler"
	"github.com/alanyoungcy/liqguard/internal/server/ws"
	"github.com/alanyoungcy/liqguard/internal/service"
	"github.com/alanyoungcy/liqguard/internal/wizard"
)

// ServerMode serves the wizard API and WebSocket feed until ctx is
// cancelled. The market catalog is hot-reloaded and the SKU catalog
// refreshed in the background.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	svc := NewWizardService(a.cfg, deps, ServerWallet(a.cfg, deps), a.logger)
	if a.cfg.Wizard.ServerSignIn && deps.Wallet != nil {
		a.logger.WarnContext(ctx, "server wallet sign-in enabled for API wizards")
	}

	hub := ws.NewHub(deps.SignalBus, a.cfg.Server.CORSOrigins, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(deps.Checks, a.logger),
		Wizards:       handler.NewWizardHandler(svc, a.cfg.Wizard.MaxUploadBytes, a.logger),
		Catalog:       handler.NewCatalogHandler(deps.Markets, deps.SKUs),
		Verifications: handler.NewVerificationHandler(svc, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if a.cfg.Catalog.MarketsFile != "" && a.cfg.Catalog.Watch {
		watcher := catalog.NewWatcher(a.cfg.Catalog.MarketsFile, deps.Markets, a.logger, svc.MarketsChanged)
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	g.Go(func() error {
		a.refreshSKUs(ctx, deps.SKUs, svc)
		return nil
	})

	return g.Wait()
}

// refreshSKUs reloads the SKU catalog into live wizards on every tick.
func (a *App) refreshSKUs(ctx context.Context, skus *catalog.SKUCatalog, svc *service.WizardService) {
	interval := a.cfg.Catalog.SKURefresh.Duration
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			skus.Invalidate()
			svc.RefreshSKUs(ctx)
			a.logger.DebugContext(ctx, "sku catalog refreshed", slog.Int("wizards", svc.Count()))
		}
	}
}

// VerifyOptions are the selections of a one-shot verify run.
type VerifyOptions struct {
	Exchange     string
	Pair         string
	OrderID      string
	SKU          string
	Environment  string
	Principal    string
	Leverage     string
	EvidenceFile string
	Language     string
	Out          io.Writer
}

// ErrNotVerified is returned by VerifyMode when the run did not end with a
// backend verdict.
var ErrNotVerified = errors.New("verification did not complete")

// VerifyMode runs one wizard from the command line with the server wallet,
// prints the localized report and returns ErrNotVerified unless the backend
// produced a verdict.
func (a *App) VerifyMode(ctx context.Context, deps *Dependencies) error {
	if deps.Wallet == nil {
		return errors.New("verify mode: a wallet key is required (wallet.private_key or wallet.sealed_key_path)")
	}
	opts := a.verify
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	lang := opts.Language
	if lang == "" {
		lang = a.cfg.Wizard.Language
	}

	address, err := deps.Wallet.Connect(ctx)
	if err != nil {
		return fmt.Errorf("verify mode: connect wallet: %w", err)
	}

	svc := NewWizardService(a.cfg, deps, deps.Wallet, a.logger)
	live, err := svc.Create(ctx, address)
	if err != nil {
		return fmt.Errorf("verify mode: %w", err)
	}
	id := live.Wizard.ID()
	defer svc.Close(id)

	for _, in := range []struct{ action, value string }{
		{service.ActionSetExchange, opts.Exchange},
		{service.ActionSetPair, opts.Pair},
		{service.ActionSetOrderID, opts.OrderID},
		{service.ActionSetSKU, opts.SKU},
		{service.ActionSetEnvironment, opts.Environment},
		{service.ActionSetPrincipal, opts.Principal},
		{service.ActionSetLeverage, opts.Leverage},
	} {
		if in.value == "" {
			continue
		}
		action, err := service.ParseAction(in.action, in.value)
		if err != nil {
			return fmt.Errorf("verify mode: %w", err)
		}
		if _, err := svc.Dispatch(id, action); err != nil {
			return fmt.Errorf("verify mode: %s: %w", in.action, err)
		}
	}

	if opts.EvidenceFile != "" {
		data, err := os.ReadFile(opts.EvidenceFile)
		if err != nil {
			return fmt.Errorf("verify mode: read evidence: %w", err)
		}
		if _, err := svc.Upload(id, filepath.Base(opts.EvidenceFile), data); err != nil {
			return fmt.Errorf("verify mode: upload evidence: %w", err)
		}
	}

	st, submitErr := svc.Submit(ctx, id)
	if submitErr != nil {
		a.logger.DebugContext(ctx, "verify mode: submission failed", slog.String("error", submitErr.Error()))
	}

	view, err := svc.View(id, lang)
	if err != nil {
		return fmt.Errorf("verify mode: %w", err)
	}
	if err := present.WriteReport(opts.Out, view); err != nil {
		return fmt.Errorf("verify mode: write report: %w", err)
	}

	if st.Phase != wizard.PhaseSuccess {
		return ErrNotVerified
	}
	return nil
}
