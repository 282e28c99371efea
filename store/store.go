// Package store persists users and posts through database/sql.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"tweetyard/config"
)

//go:embed migrations
var migrations embed.FS

// Open connects to the configured database and brings its schema up to date.
func Open(c config.DB) (*sql.DB, error) {
	db, err := sql.Open(c.Driver, c.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Driver, err)
	}
	if c.Driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", c.Driver, err)
	}
	if err := Migrate(db, c.Driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded migrations for driver. An up-to-date schema is not an error.
func Migrate(db *sql.DB, driver string) error {
	var (
		dbDriver database.Driver
		err      error
	)
	switch driver {
	case "sqlite":
		dbDriver, err = msqlite.WithInstance(db, &msqlite.Config{})
	case "postgres":
		dbDriver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(migrations, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("database schema migration: %w", err)
	}
	return nil
}
