package bundb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	identitydb "github.com/davidhouweling/guilty-spark-sub001/app/modules/identity/infrastructure/repositories"
	timelinedb "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/infrastructure/repositories"
	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/config"
)

// DBService bundles the per-module bun repositories over one connection pool.
type DBService struct {
	IdentityDB *identitydb.AssociationDBImpl
	TimelineDB *timelinedb.TimelineDBImpl
	SecretDB   *timelinedb.SecretDBImpl
	TrackerDB  *trackerdb.TrackerDBImpl

	db *bun.DB
}

// GetDB returns the underlying database connection pool.
func (dbService *DBService) GetDB() *bun.DB {
	return dbService.db
}

// Close releases the underlying connection pool.
func (dbService *DBService) Close() error {
	return dbService.db.Close()
}

// NewBunDBService initializes a new DBService with the provided Postgres configuration.
func NewBunDBService(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*DBService, error) {
	sqldb, err := pgConn(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	db.RegisterModel(&identitydb.Association{})
	db.RegisterModel(&timelinedb.Timeline{})
	db.RegisterModel(&timelinedb.WebhookSecret{})
	db.RegisterModel(&trackerdb.Tracker{})

	logger.InfoContext(ctx, "Database connection established")

	return &DBService{
		IdentityDB: &identitydb.AssociationDBImpl{DB: db},
		TimelineDB: &timelinedb.TimelineDBImpl{DB: db, TTL: timelinedb.DefaultTTL},
		SecretDB:   &timelinedb.SecretDBImpl{DB: db},
		TrackerDB:  &trackerdb.TrackerDBImpl{DB: db},
		db:         db,
	}, nil
}

func pgConn(ctx context.Context, dsn string) (*sql.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

	if err := sqldb.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqldb, nil
}
