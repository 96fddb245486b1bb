// Package database provides database connection handling and cross-dialect
// SQL compatibility helpers. Queries are written PostgreSQL-style ($N
// placeholders) and converted for the active driver.
package database

import (
	"regexp"
	"strings"
	"sync"
)

var (
	driverMu   sync.RWMutex
	driverName = "postgres"
)

// SetDriver records the active database driver. Called once by Open; tests
// may call it directly to exercise dialect paths.
func SetDriver(name string) {
	driverMu.Lock()
	driverName = strings.ToLower(name)
	driverMu.Unlock()
}

// Driver returns the active database driver name.
func Driver() string {
	driverMu.RLock()
	defer driverMu.RUnlock()
	return driverName
}

// IsMySQL returns true if using MySQL/MariaDB.
func IsMySQL() bool {
	d := Driver()
	return d == "mysql" || d == "mariadb"
}

// IsPostgreSQL returns true if using PostgreSQL.
func IsPostgreSQL() bool {
	return Driver() == "postgres"
}

// IsSQLite returns true if using SQLite.
func IsSQLite() bool {
	d := Driver()
	return d == "sqlite" || d == "sqlite3"
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

// ConvertPlaceholders converts PostgreSQL placeholders ($1, $2) to ?
// placeholders for drivers that need them. Repositories write every query in
// PostgreSQL format and pass it through here.
func ConvertPlaceholders(query string) string {
	if IsPostgreSQL() {
		return query
	}

	placeholders := placeholderRe.FindAllString(query, -1)
	result := query
	for _, placeholder := range placeholders {
		result = strings.Replace(result, placeholder, "?", 1)
	}

	if IsMySQL() {
		result = strings.ReplaceAll(result, " ILIKE ", " LIKE ")
		result = strings.ReplaceAll(result, " ilike ", " LIKE ")
	}

	return result
}
