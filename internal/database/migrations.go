package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirty means a previous migration failed halfway and needs manual repair
var ErrDirty = errors.New("database schema is dirty")

// SchemaVersion is the applied migration state
type SchemaVersion struct {
	Version uint
	Dirty   bool
}

func newMigrator(db *gorm.DB) (*migrate.Migrate, error) {
	if db == nil {
		return nil, errors.New("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: "goldstreak_schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", source, "postgres", driver)
}

// CurrentVersion reports the applied schema version. A fresh database has
// version 0.
func CurrentVersion(db *gorm.DB) (SchemaVersion, error) {
	m, err := newMigrator(db)
	if err != nil {
		return SchemaVersion{}, err
	}
	return readVersion(m)
}

func readVersion(m *migrate.Migrate) (SchemaVersion, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return SchemaVersion{}, nil
	}
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return SchemaVersion{Version: version, Dirty: dirty}, nil
}

// RunMigrations applies pending migrations. It refuses to run over a dirty
// schema.
func RunMigrations(db *gorm.DB, logger *zap.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	before, err := readVersion(m)
	if err != nil {
		return err
	}
	if before.Dirty {
		return fmt.Errorf("%w at version %d", ErrDirty, before.Version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	after, err := readVersion(m)
	if err != nil {
		return err
	}
	if after.Version == before.Version {
		logger.Info("migrations_up_to_date", zap.Uint("version", after.Version))
		return nil
	}
	logger.Info("migrations_applied", zap.Uint("from", before.Version), zap.Uint("to", after.Version))
	return nil
}
