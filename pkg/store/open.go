package store

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"podcast-search/pkg/config"
	"podcast-search/pkg/db"
)

// Open connects the backend named by cfg.Driver. dataDir holds the default
// SQLite and JSON files when cfg.DSN is empty.
func Open(ctx context.Context, cfg config.StoreConfig, dataDir string) (Store, error) {
	logger := zap.L().With(zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverSQLite:
		path := cfg.DSN
		if path == "" {
			path = filepath.Join(dataDir, "castex.db")
		}
		client := db.NewSQLiteClient(db.SQLiteConfig{Path: path})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		logger.Debug("store opened", zap.String("path", path))
		return openSQL(ctx, client, DialectSQLite, client.Close)

	case config.DriverPostgres:
		client := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.DSN, MaxOpenConns: 10})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return openSQL(ctx, client, DialectPostgres, client.Close)

	case config.DriverSupabase:
		client := db.NewSupabaseClient(db.SupabaseConfig{
			ConnectionString: cfg.DSN,
			SupabaseURL:      cfg.SupabaseURL,
			SupabaseKey:      cfg.SupabaseKey,
			MaxOpenConns:     10,
		})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		if client.HasDirectDB() {
			return openSQL(ctx, client, DialectPostgres, client.Close)
		}
		logger.Info("supabase: no direct database connection, using REST API")
		return NewSupabaseRESTStore(client.SDK())

	case config.DriverMongo:
		client := db.NewMongoClient(db.MongoConfig{
			URI:        cfg.DSN,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		s, err := NewMongoStore(ctx, client.Collection(), client.Close)
		if err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return s, nil

	case config.DriverJSON:
		path := cfg.DSN
		if path == "" {
			path = filepath.Join(dataDir, EpisodesFilename)
		}
		return OpenJSONStore(path)

	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// openSQL releases the connection when the schema cannot be created.
func openSQL(ctx context.Context, provider db.DBProvider, dialect Dialect, closer func() error) (Store, error) {
	s, err := NewSQLStore(ctx, provider, dialect, closer)
	if err != nil {
		_ = closer()
		return nil, err
	}
	return s, nil
}
