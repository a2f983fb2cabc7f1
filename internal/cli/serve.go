package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/migrations"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config.Config(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

// serve runs the server until ctx is done, then gives outstanding requests
// shutdownTimeout to complete.
func serve(ctx context.Context, cfg *config.ConfigParam, migrate bool) error {
	slog := log.With().Str("state", "init").Logger()
	ctx = slog.WithContext(ctx)

	if err := db.Init(ctx, cfg.DB); err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if pool := db.Pool(); pool != nil {
			pool.Close()
		}
	}()
	if migrate {
		m, err := migrations.New(db.Pool())
		if err != nil {
			return err
		}
		if err := m.Up(); err != nil {
			return err
		}
	}

	s, err := server.CreateNewServer(cfg, nil)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer s.Close()
	s.MountHandlers()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.HostName, cfg.Server.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info().Str("addr", srv.Addr).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error().Err(err).Msg("could not stop server gracefully")
		if err := srv.Close(); err != nil {
			slog.Error().Err(err).Msg("could not stop server")
		}
	}
	slog.Info().Msg("server stopped")
	return nil
}
