package app

import (
	"github.com/escolab/boletim/internal/store"
	"github.com/escolab/boletim/internal/store/postgres"
	"github.com/escolab/boletim/internal/store/sqlite"
)

func NewStore(dsn, migrationsDir string) (store.BoletimStore, error) {
	if migrationsDir == "" {
		migrationsDir = "./migrations"
	}

	cfg := store.ParseDSN(dsn)
	if cfg.Type == store.DBTypePostgres {
		return postgres.NewPostgresStore(cfg.DSN, migrationsDir)
	}
	return sqlite.NewSQLiteStore(cfg.DSN, migrationsDir)
}
