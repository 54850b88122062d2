package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/grpcserver"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/httpapi"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers",
	Long: `Run the recommendation service.

Serves GET /recommendations, /health and /metrics over HTTP, the
RecommendationService over gRPC, and refreshes the popularity snapshot on
the configured schedule. Stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	// ── Popularity refresh ───────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if spec := cfg.Recommend.PopularityRefreshSpec; spec != "" {
		sched = scheduler.New(d.engine.Popularity(), spec, logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	h := httpapi.NewHandler(d.engine, d.store, logger, serviceName, Version)
	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: httpapi.NewRouter(h, httpapi.RouterConfig{
			RateLimit:       cfg.Server.RateLimit,
			RateLimitWindow: cfg.Server.RateLimitWindow,
			RequestTimeout:  cfg.Server.RequestTimeout,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("version", Version).Str("port", cfg.Server.Port).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// ── gRPC server ──────────────────────────────────────────────────────────
	var gs *grpc.Server
	if cfg.Server.GRPCPort != "" {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		gs = grpcserver.New(grpcserver.NewServer(d.engine, logger))
		go func() {
			logger.Info().Str("port", cfg.Server.GRPCPort).Msg("grpc listening")
			if err := gs.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
		stop()
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if gs != nil {
		gracefulStopGRPC(shutdownCtx, gs)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("stopped")
	return nil
}

// gracefulStopGRPC stops gs, forcing it once ctx expires.
func gracefulStopGRPC(ctx context.Context, gs *grpc.Server) {
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		gs.Stop()
	}
}
