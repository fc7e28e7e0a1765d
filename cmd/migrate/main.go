// Package main is the judge_submissions schema migration CLI. It shares
// judgeconfig's DATABASE_URL/DATABASE_TYPE resolution with judged so the
// two binaries never disagree about which database they're pointed at,
// and it applies the migrations embedded in the migrations package
// rather than hunting for a migrations/ directory relative to the
// working directory.
//
// Usage:
//
//	go run cmd/migrate/main.go up           # Apply all pending migrations
//	go run cmd/migrate/main.go down         # Rollback last migration
//	go run cmd/migrate/main.go down-all     # Rollback all migrations
//	go run cmd/migrate/main.go version      # Show current migration version
//	go run cmd/migrate/main.go to N         # Migrate to specific version N
//	go run cmd/migrate/main.go force N      # Force version to N (fix dirty state)
//	go run cmd/migrate/main.go create NAME  # Scaffold new migration files on disk
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"judge-core/internal/database"
	"judge-core/internal/judgeconfig"
	"judge-core/migrations"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	if command == "help" {
		printUsage()
		return
	}
	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <migration_name>")
		}
		createMigration(os.Args[2])
		return
	}

	cfg, err := judgeconfig.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	log.Printf("Database type: %s", cfg.DatabaseType)

	config := &database.MigrationConfig{
		DatabaseURL:  cfg.DatabaseURL,
		DatabaseType: cfg.DatabaseType,
		Source:       migrations.FS,
	}

	switch command {
	case "up":
		runUp(config)
	case "down":
		runDown(config)
	case "down-all":
		runDownAll(config)
	case "version":
		showVersion(config)
	case "to":
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate to <version>")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 32)
		if err != nil {
			log.Fatalf("invalid version number: %s", os.Args[2])
		}
		runTo(config, uint(version))
	case "force":
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate force <version>")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("invalid version number: %s", os.Args[2])
		}
		runForce(config, version)
	default:
		log.Printf("unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`
Judge Core Database Migration Tool

Usage:
  migrate <command> [arguments]

Commands:
  up              Apply all pending migrations
  down            Rollback the last migration
  down-all        Rollback all migrations (WARNING: deletes all data!)
  version         Show current migration version
  to <N>          Migrate to specific version N
  force <N>       Force version to N (use to fix dirty state)
  create <name>   Scaffold new migration files in migrations/
  help            Show this help message

Environment Variables (shared with judged):
  DATABASE_URL    Database connection string (default: judge_core.db)
  DATABASE_TYPE   "postgres" or "sqlite" (default: sqlite)

create additionally honors MIGRATIONS_PATH to scaffold files outside
the repo's migrations/ directory (default: ./migrations).

Examples:
  # Apply all migrations
  go run cmd/migrate/main.go up

  # Rollback last migration
  go run cmd/migrate/main.go down

  # Check current version
  go run cmd/migrate/main.go version

  # Scaffold a new migration
  go run cmd/migrate/main.go create add_user_preferences

  # Fix dirty migration state
  go run cmd/migrate/main.go force 5
`)
}

func runUp(config *database.MigrationConfig) {
	log.Println("Applying all pending migrations...")

	runner, err := database.NewMigrationRunner(config)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}
	defer runner.Close()

	if err := runner.RunMigrations(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("All migrations applied successfully!")
}

func runDown(config *database.MigrationConfig) {
	log.Println("Rolling back last migration...")

	runner, err := database.NewMigrationRunner(config)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}
	defer runner.Close()

	if err := runner.RollbackMigration(); err != nil {
		log.Fatalf("Rollback failed: %v", err)
	}

	log.Println("Rollback completed successfully!")
}

func runDownAll(config *database.MigrationConfig) {
	log.Println("WARNING: This will rollback ALL migrations and delete all data!")
	log.Println("Press Ctrl+C within 5 seconds to cancel...")

	time.Sleep(5 * time.Second)

	runner, err := database.NewMigrationRunner(config)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}
	defer runner.Close()

	if err := runner.RollbackAll(); err != nil {
		log.Fatalf("Rollback all failed: %v", err)
	}

	log.Println("All migrations rolled back!")
}

func showVersion(config *database.MigrationConfig) {
	runner, err := database.NewMigrationRunner(config)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}
	defer runner.Close()

	status, err := runner.GetVersion()
	if err != nil {
		log.Fatalf("Failed to get version: %v", err)
	}

	fmt.Println("Current Migration Status:")
	fmt.Printf("  Version: %d\n", status.Version)
	fmt.Printf("  Dirty:   %v\n", status.Dirty)
	fmt.Printf("  Applied: %v\n", status.Applied)

	if status.Dirty {
		fmt.Println("\nWARNING: Database is in dirty state!")
		fmt.Println("This usually means a migration failed halfway.")
		fmt.Printf("Use 'migrate force %d' to fix, then retry.\n", status.Version-1)
	}
}

func runTo(config *database.MigrationConfig, version uint) {
	log.Printf("Migrating to version %d...", version)

	runner, err := database.NewMigrationRunner(config)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}
	defer runner.Close()

	if err := runner.MigrateToVersion(version); err != nil {
		log.Fatalf("Migration to version %d failed: %v", version, err)
	}

	log.Printf("Successfully migrated to version %d", version)
}

func runForce(config *database.MigrationConfig, version int) {
	log.Printf("Forcing migration version to %d...", version)
	log.Println("WARNING: This does not run any migrations, it only updates the version!")

	runner, err := database.NewMigrationRunner(config)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}
	defer runner.Close()

	if err := runner.Force(version); err != nil {
		log.Fatalf("Force failed: %v", err)
	}

	log.Printf("Version forced to %d", version)
}

// createMigration scaffolds a new pair of .up.sql/.down.sql files on
// disk. Unlike the other commands it never touches the embedded
// migrations.FS - new migrations have to exist as real files before the
// next build can embed them.
func createMigration(name string) {
	dir := os.Getenv("MIGRATIONS_PATH")
	if dir == "" {
		dir = "migrations"
	}

	name = strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	name = strings.ReplaceAll(name, "-", "_")

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("Failed to read migrations directory %s: %v", dir, err)
	}

	maxVersion := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filename := entry.Name()
		if len(filename) >= 6 {
			if v, err := strconv.Atoi(filename[:6]); err == nil && v > maxVersion {
				maxVersion = v
			}
		}
	}

	nextVersion := maxVersion + 1
	prefix := fmt.Sprintf("%06d_%s", nextVersion, name)

	upFile := filepath.Join(dir, prefix+".up.sql")
	downFile := filepath.Join(dir, prefix+".down.sql")

	upContent := fmt.Sprintf(`-- Migration: %s
-- Created: %s
--
-- Description: TODO: Add description
--

-- Add your UP migration SQL here

`, name, time.Now().Format(time.RFC3339))

	downContent := fmt.Sprintf(`-- Rollback: %s
-- Created: %s
--
-- Description: Rollback for %s
--

-- Add your DOWN migration SQL here (reverse of UP)

`, name, time.Now().Format(time.RFC3339), name)

	if err := os.WriteFile(upFile, []byte(upContent), 0644); err != nil {
		log.Fatalf("Failed to create up migration: %v", err)
	}

	if err := os.WriteFile(downFile, []byte(downContent), 0644); err != nil {
		log.Fatalf("Failed to create down migration: %v", err)
	}

	fmt.Printf("Created migration files:\n")
	fmt.Printf("  %s\n", upFile)
	fmt.Printf("  %s\n", downFile)
}
