// Package store persists users and customers with bun and go-repository-bun.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-customer-listing/model"
	"github.com/goliatone/go-customer-listing/pkg/logging"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DefaultDSN is a process-local sqlite database.
const DefaultDSN = "file:customers?mode=memory&cache=shared"

// Config selects the database.
type Config struct {
	Driver string
	DSN    string
	// LogQueries logs every statement at debug level.
	LogQueries bool
}

// DefaultConfig returns an in-memory sqlite configuration.
func DefaultConfig() Config {
	return Config{Driver: DriverSQLite, DSN: DefaultDSN}
}

// Validate checks the driver and DSN.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}

// Open connects to the configured database and pings it.
func Open(ctx context.Context, cfg Config, logger logging.Logger) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	var db *bun.DB
	switch cfg.Driver {
	case DriverSQLite:
		// one connection keeps in-memory databases alive and serializes writers
		sqldb.SetMaxOpenConns(1)
		sqldb.SetConnMaxLifetime(0)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		sqldb.SetMaxOpenConns(25)
		sqldb.SetMaxIdleConns(25)
		sqldb.SetConnMaxLifetime(5 * time.Minute)
		db = bun.NewDB(sqldb, pgdialect.New())
	}

	if cfg.LogQueries {
		db.AddQueryHook(queryLogger{logger: logging.OrNop(logger)})
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	return db, nil
}

// Migrate creates the tables and indexes if they are missing.
func Migrate(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*model.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create users: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*model.Customer)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create customers: %w", err)
	}

	if _, err := db.NewCreateIndex().
		Model((*model.Customer)(nil)).
		Index("customers_user_listing_idx").
		Column("user_id", "created_at", "id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create customers index: %w", err)
	}

	return nil
}

type queryLogger struct {
	logger logging.Logger
}

func (h queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	fields := logging.Fields{
		"query":    event.Query,
		"duration": time.Since(event.StartTime).String(),
	}
	if event.Err != nil && event.Err != sql.ErrNoRows {
		fields["error"] = event.Err.Error()
		h.logger.Warn("query failed", fields)
		return
	}
	h.logger.Debug("query", fields)
}
