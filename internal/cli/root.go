// Package cli provides the command-line interface for the recommendation
// service.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/cache"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/config"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/db"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/logging"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/recommend"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/store"
)

const serviceName = "recommendation-service"

var (
	// Version is set at build time.
	Version = "1.0.0"

	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "recsvc",
	Short: "Ad recommendation service",
	Long: `recsvc serves per-user ad recommendations.

Users with history get ads scored against a profile of their recent
interactions; new users get trending, boosted and latest ads.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logger = logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}, serviceName)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recommendCmd)
}

// deps holds the connections and the engine shared by the commands.
type deps struct {
	pool   *pgxpool.Pool
	rdb    *redis.Client
	store  *store.Postgres
	engine *recommend.Engine
}

// connect opens PostgreSQL and Redis and wires the engine. A Redis outage at
// startup is logged and tolerated: the result cache reports misses until it
// recovers.
func connect(ctx context.Context) (*deps, error) {
	logger.Info().Msg("connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	logger.Info().Msg("connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		if rdb == nil {
			pool.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		logger.Warn().Err(err).Msg("redis unreachable, continuing without result cache hits")
	}

	pg := store.NewPostgres(pool)
	resultCache := cache.NewRedis(rdb, cache.BreakerConfig{
		FailureThreshold: cfg.Redis.FailureThreshold,
		OpenTimeout:      cfg.Redis.OpenTimeout,
	}, logger)

	return &deps{
		pool:   pool,
		rdb:    rdb,
		store:  pg,
		engine: recommend.NewEngine(pg, pg, resultCache, cfg.Settings(), logger),
	}, nil
}

func (d *deps) Close() {
	if err := d.rdb.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close redis: %v\n", err)
	}
	d.pool.Close()
}
