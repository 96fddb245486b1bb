package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Options describes how to reach the database.
type Options struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the configured database, applies pool settings and
// registers the driver for dialect helpers.
func Open(opts Options) (*sql.DB, error) {
	dsn, err := buildDSN(opts)
	if err != nil {
		return nil, err
	}

	driver := opts.Driver
	if driver == "sqlite" {
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", opts.Driver, err)
	}

	SetDriver(opts.Driver)
	return db, nil
}

func buildDSN(opts Options) (string, error) {
	switch opts.Driver {
	case "postgres":
		sslMode := opts.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			opts.Host, opts.Port, opts.User, opts.Password, opts.Name, sslMode), nil
	case "mysql", "mariadb":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
			opts.User, opts.Password, opts.Host, opts.Port, opts.Name), nil
	case "sqlite", "sqlite3":
		name := opts.Name
		if name == "" {
			name = "helpdesk.db"
		}
		return name + "?_foreign_keys=on", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}
