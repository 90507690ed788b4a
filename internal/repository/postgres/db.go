// Package postgres implements the record-store repositories over sqlx.
package postgres

import (
	"lecturegate/pkg/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// NewDB opens the connection pool with the configured limits.
func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}
