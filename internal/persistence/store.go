// Package persistence opens the record store selected by configuration.
package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"example.com/exercisetracker/internal/config"
	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/persistence/memory"
	"example.com/exercisetracker/internal/persistence/mongo"
	"example.com/exercisetracker/internal/persistence/postgres"
)

// Store is an opened backend. Pool is non-nil only for Postgres, which is the
// backend that records outbox events.
type Store struct {
	Repository domain.Repository
	Pool       *pgxpool.Pool
	Backend    string
	closeFn    func(context.Context) error
}

// Close releases the backend connection.
func (s *Store) Close(ctx context.Context) error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}

// Open connects to the backend named by cfg.StoreBackend.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &Store{Repository: memory.NewRepository(), Backend: config.BackendMemory}, nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return &Store{
			Repository: postgres.NewRepository(pool),
			Pool:       pool,
			Backend:    config.BackendPostgres,
			closeFn: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.BackendMongo:
		client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		repo := mongo.NewRepository(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return &Store{
			Repository: repo,
			Backend:    config.BackendMongo,
			closeFn:    client.Disconnect,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
