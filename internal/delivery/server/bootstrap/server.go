package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Amit95688/TDS/internal/shared/config"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

// RunServer builds the container and serves HTTP until ctx is canceled or an
// interrupt arrives.
func RunServer(ctx context.Context, cfg config.Config) error {
	logger := logging.NewComponentLogger("Main")
	logging.Configure(logging.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("Starting %s %s...", cfg.Server.ServiceName, Version)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := BuildContainer(ctx, cfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		// Builds block on generation and the readiness wait.
		WriteTimeout: cfg.LLM.Timeout + cfg.Lifecycle.PublishWaitTimeout + time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return serveUntilDone(ctx, server, container, cfg.Server.ShutdownTimeout, logger)
}

func serveUntilDone(ctx context.Context, server *http.Server, container *Container, shutdownTimeout time.Duration, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("Server listening on %s (store=%s)", server.Addr, container.StoreKind)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		container.Close(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("Server stopped")
		return nil
	})

	return group.Wait()
}
