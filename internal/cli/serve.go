package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"season-predictions/internal/config"
	transport "season-predictions/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the HTTP server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve leaderboards, the live feed and the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	rt, err := newRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = rt.cfg.Server.Port
	}

	handler := transport.NewHandler(rt.grading, rt.board, rt.admin, rt.feed, rt.log)
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(handler, rt.registry),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the leaderboard feed holds connections open.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.log.Info().Str("addr", server.Addr).Msg("starting prediction service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		rt.log.Info().Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
