// Package database opens the application's SQL connection pool.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/km-arc/go-laravel-container/framework/config"
)

// Open connects to the database described by cfg and verifies the connection.
//
//	// Laravel: DB::connection()
//	db, err := database.Open(ctx, cfg.DB)
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}
