// Command gatewayd is the roasting-machine gateway daemon: it loads
// the machine catalog, wires an explicitly-constructed manager and
// simulator lifecycle (no singletons), and serves the live WebSocket
// stream over HTTP until told to shut down.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/roastworks/roaster-gateway/internal/catalogfile"
	"github.com/roastworks/roaster-gateway/internal/config"
	"github.com/roastworks/roaster-gateway/internal/manager"
	"github.com/roastworks/roaster-gateway/internal/simlifecycle"
	"github.com/roastworks/roaster-gateway/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "gatewayd.yaml", "path to gateway configuration")
	addr := flag.String("addr", ":8090", "HTTP listen address")
	simModelID := flag.String("sim", "", "catalog model id to auto-start as a simulator on boot")
	flag.Parse()

	if err := run(*configPath, *addr, *simModelID); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, addr, simModelID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("gatewayd: %w", err)
	}

	logger, err := telemetry.NewLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("gatewayd: %w", err)
	}
	defer logger.Sync()

	store, err := telemetry.OpenStore(cfg.Telemetry.DBPath)
	if err != nil {
		return fmt.Errorf("gatewayd: %w", err)
	}
	defer store.Close()

	provider, err := catalogfile.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("gatewayd: %w", err)
	}

	mgr := manager.New()
	lifecycle := simlifecycle.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if simModelID != "" {
		model, err := provider.Model(ctx, simModelID)
		if err != nil {
			return fmt.Errorf("gatewayd: %w", err)
		}
		mfrID := provider.ManufacturerID(simModelID)
		info, saved, err := lifecycle.Start(model, mfrID, cfg.Simulator.Host, 0, time.Now().UnixNano())
		if err != nil {
			return fmt.Errorf("gatewayd: %w", err)
		}
		if err := mgr.Connect(ctx, saved); err != nil {
			return fmt.Errorf("gatewayd: %w", err)
		}
		logger.Info("simulator started",
			zap.String("machine_id", saved.ID),
			zap.String("catalog_id", model.ID),
			zap.Int("port", info.Port))
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: newRouter(mgr, lifecycle, store, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)

		lifecycle.StopAll()
		for _, id := range mgr.ActiveMachines() {
			if err := mgr.Disconnect(shutdownCtx, id); err != nil {
				logger.Warn("disconnect on shutdown failed", zap.String("machine_id", id), zap.Error(err))
			}
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
