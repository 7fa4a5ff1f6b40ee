package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"aigateway/config"
)

// Storage types accepted in config.StorageConfig.Type.
const (
	StorageSQLite     = "sqlite"
	StoragePostgreSQL = "postgresql"
	StorageMongoDB    = "mongodb"
)

const (
	defaultSQLitePath    = "data/aigateway.db"
	defaultMongoDatabase = "aigateway"
	defaultPostgresConns = 10
)

// openSQLite opens the audit database file in WAL mode, creating its
// directory first. The pool is capped at one connection since the flush loop
// is the only writer.
func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return db, nil
}

func openPostgreSQL(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, errors.New("PostgreSQL URL is required")
	}
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL URL: %w", err)
	}
	if maxConns <= 0 {
		maxConns = defaultPostgresConns
	}
	poolCfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	return pool, nil
}

func openMongoDB(ctx context.Context, url, database string) (*mongo.Client, *mongo.Database, error) {
	if url == "" {
		return nil, nil, errors.New("MongoDB URL is required")
	}
	if database == "" {
		database = defaultMongoDatabase
	}
	client, err := mongo.Connect(options.Client().ApplyURI(url))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, client.Database(database), nil
}

// openLogStore connects to the configured database and builds the matching
// LogStore. The returned func releases the connection and must be called
// after the store is closed.
func openLogStore(ctx context.Context, cfg config.StorageConfig, retentionDays int) (LogStore, func() error, error) {
	switch cfg.Type {
	case StorageSQLite, "":
		db, err := openSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewSQLiteStore(db, retentionDays)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case StoragePostgreSQL:
		pool, err := openPostgreSQL(ctx, cfg.PostgreSQL.URL, cfg.PostgreSQL.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewPostgreSQLStore(ctx, pool, retentionDays)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func() error { pool.Close(); return nil }, nil

	case StorageMongoDB:
		client, db, err := openMongoDB(ctx, cfg.MongoDB.URL, cfg.MongoDB.Database)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewMongoDBStore(ctx, db, retentionDays)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return store, func() error { return client.Disconnect(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage type: %s (valid: sqlite, postgresql, mongodb)", cfg.Type)
	}
}
