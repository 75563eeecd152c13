package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/sporttrack/internal/server"
	"github.com/desertthunder/sporttrack/internal/shared"
)

// DevServer runs the stub analysis backend until the context is cancelled.
func (r *Runner) DevServer(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.DevServer
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := int(cmd.Int("port")); port > 0 {
		cfg.Port = port
	}
	if dir := cmd.String("media-dir"); dir != "" {
		cfg.MediaDir = dir
	}

	backend, err := server.NewBackend(server.BackendOpts{
		MediaDir:  cfg.MediaDir,
		StepDelay: cfg.StepDelay,
		Logger:    shared.WithLogger(r.logger, "component", "dev-server"),
	})
	if err != nil {
		return err
	}
	defer backend.Close()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           backend,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting stub backend at http://%v (media in %s)", cfg.Addr(), backend.MediaDir())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	r.writePlain("→ Stub backend listening on http://%s\n", cfg.Addr())
	r.writePlain("Press Ctrl+C to stop.\n")

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutting down stub backend")
	case err := <-serverErrors:
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	return runErr
}
