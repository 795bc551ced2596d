package store

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	mongodb "github.com/avvvet/codebreak-services/internal/db"
	"github.com/avvvet/codebreak-services/internal/gamesvc/config"
	pgdb "github.com/avvvet/codebreak-services/internal/gamesvc/db"
)

// Open connects the backend named by cfg.StoreBackend and prepares its
// schema. The returned func releases the connection.
func Open(ctx context.Context, cfg config.Config) (Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		database, disconnect, err := mongodb.ConnectToDB(cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, database); err != nil {
			disconnect()
			return nil, nil, err
		}
		log.Infof("mongodb connection established, database %s", database.Name())
		return NewMongoStore(database), disconnect, nil

	case config.BackendPostgres:
		pool, err := pgdb.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s := NewPgStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pgdb.ClosePool()
			return nil, nil, err
		}
		log.Info("pg connection established successfully")
		return s, pgdb.ClosePool, nil

	case config.BackendMemory:
		log.Warn("using in-memory store, state is lost on restart and not shared between services")
		return NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
