// Package database provides the versioned schema migration runner for
// the judge_submissions table, built on golang-migrate.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationConfig holds configuration for the migration runner.
type MigrationConfig struct {
	// Database connection string (PostgreSQL or SQLite).
	DatabaseURL string

	// Database type: "postgres" or "sqlite".
	DatabaseType string

	// Source holds the judge_submissions migration files. The migrate
	// CLI's apply-side commands (up/down/down-all/to/force/version) pass
	// the embedded migrations.FS so the schema ships with the binary; its
	// create command writes files on disk and never builds a
	// MigrationConfig.
	Source fs.FS

	// SourcePath is the directory within Source holding the migration
	// files. Defaults to "." (the root of Source).
	SourcePath string

	// Logger for migration output.
	Logger *log.Logger
}

// MigrationRunner handles database migrations.
type MigrationRunner struct {
	config   *MigrationConfig
	migrate  *migrate.Migrate
	db       *sql.DB
	dbDriver string
}

// MigrationStatus represents the current migration state.
type MigrationStatus struct {
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// NewMigrationRunner creates a new migration runner against the
// judge_submissions schema.
func NewMigrationRunner(config *MigrationConfig) (*MigrationRunner, error) {
	if config == nil {
		return nil, errors.New("migration config is required")
	}
	if config.Source == nil {
		return nil, errors.New("migration config requires a Source")
	}

	if config.Logger == nil {
		config.Logger = log.New(os.Stdout, "[MIGRATE] ", log.LstdFlags)
	}
	if config.SourcePath == "" {
		config.SourcePath = "."
	}

	runner := &MigrationRunner{
		config:   config,
		dbDriver: config.DatabaseType,
	}

	if err := runner.initialize(); err != nil {
		return nil, err
	}

	return runner, nil
}

// initialize sets up the migration instance.
func (r *MigrationRunner) initialize() error {
	var err error
	var dbDriver database.Driver

	switch r.dbDriver {
	case "postgres", "postgresql":
		r.db, err = sql.Open("postgres", r.config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open PostgreSQL connection: %w", err)
		}

		dbDriver, err = postgres.WithInstance(r.db, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		r.dbDriver = "postgres"

	case "sqlite", "sqlite3":
		r.db, err = sql.Open("sqlite", r.config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open SQLite connection: %w", err)
		}

		dbDriver, err = sqlite3.WithInstance(r.db, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		r.dbDriver = "sqlite3"

	default:
		return fmt.Errorf("unsupported database type: %s", r.dbDriver)
	}

	sourceDriver, err := iofs.New(r.config.Source, r.config.SourcePath)
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	r.migrate, err = migrate.NewWithInstance("iofs", sourceDriver, r.dbDriver, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	return nil
}

// RunMigrations applies all pending migrations.
func (r *MigrationRunner) RunMigrations() error {
	r.config.Logger.Println("Running database migrations...")

	err := r.migrate.Up()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.config.Logger.Println("No migrations to apply - database is up to date")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, _ := r.migrate.Version()
	r.config.Logger.Printf("Migrations completed successfully. Current version: %d (dirty: %v)", version, dirty)

	return nil
}

// MigrateUp applies N migrations.
func (r *MigrationRunner) MigrateUp(n int) error {
	r.config.Logger.Printf("Applying %d migration(s)...", n)

	err := r.migrate.Steps(n)
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.config.Logger.Println("No migrations to apply")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, _ := r.migrate.Version()
	r.config.Logger.Printf("Applied %d migration(s). Current version: %d (dirty: %v)", n, version, dirty)

	return nil
}

// RollbackMigration rolls back the last migration.
func (r *MigrationRunner) RollbackMigration() error {
	r.config.Logger.Println("Rolling back last migration...")

	err := r.migrate.Steps(-1)
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.config.Logger.Println("No migrations to rollback")
			return nil
		}
		return fmt.Errorf("rollback failed: %w", err)
	}

	version, dirty, _ := r.migrate.Version()
	r.config.Logger.Printf("Rollback completed. Current version: %d (dirty: %v)", version, dirty)

	return nil
}

// RollbackAll rolls back all migrations.
func (r *MigrationRunner) RollbackAll() error {
	r.config.Logger.Println("Rolling back all migrations...")

	err := r.migrate.Down()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.config.Logger.Println("No migrations to rollback")
			return nil
		}
		return fmt.Errorf("rollback all failed: %w", err)
	}

	r.config.Logger.Println("All migrations rolled back successfully")
	return nil
}

// MigrateToVersion migrates to a specific version.
func (r *MigrationRunner) MigrateToVersion(version uint) error {
	r.config.Logger.Printf("Migrating to version %d...", version)

	err := r.migrate.Migrate(version)
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.config.Logger.Printf("Already at version %d", version)
			return nil
		}
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}

	currentVersion, dirty, _ := r.migrate.Version()
	r.config.Logger.Printf("Migration completed. Current version: %d (dirty: %v)", currentVersion, dirty)

	return nil
}

// GetVersion returns the current migration version.
func (r *MigrationRunner) GetVersion() (MigrationStatus, error) {
	version, dirty, err := r.migrate.Version()

	status := MigrationStatus{
		Version: version,
		Dirty:   dirty,
		Applied: version > 0,
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			status.Version = 0
			status.Applied = false
			return status, nil
		}
		status.Error = err.Error()
		return status, err
	}

	return status, nil
}

// Force sets the migration version without running migrations.
// Use with caution - this is for fixing dirty states.
func (r *MigrationRunner) Force(version int) error {
	r.config.Logger.Printf("Forcing version to %d...", version)

	err := r.migrate.Force(version)
	if err != nil {
		return fmt.Errorf("force failed: %w", err)
	}

	r.config.Logger.Printf("Version forced to %d", version)
	return nil
}

// Close closes the migration runner and database connection.
func (r *MigrationRunner) Close() error {
	if r.migrate != nil {
		srcErr, dbErr := r.migrate.Close()
		if srcErr != nil {
			return fmt.Errorf("failed to close source: %w", srcErr)
		}
		if dbErr != nil {
			return fmt.Errorf("failed to close database: %w", dbErr)
		}
	}
	return nil
}
