package store

import "strings"

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

type DBConfig struct {
	DSN  string
	Type DatabaseType
}

// ParseDSN classifies a connection string. Anything that is not a
// Postgres URL is treated as a SQLite path, ":memory:" included.
func ParseDSN(dsn string) DBConfig {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DBConfig{DSN: dsn, Type: DBTypePostgres}
	}
	return DBConfig{DSN: dsn, Type: DBTypeSQLite}
}
