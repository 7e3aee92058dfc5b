package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/authority/*.sql migrations/client/*.sql
var migrationsFS embed.FS

// Schema selects which embedded migration set to apply.
type Schema string

const (
	// SchemaAuthority is the allow-list authority's server-side schema.
	SchemaAuthority Schema = "authority"
	// SchemaClient is the client's private local state schema.
	SchemaClient Schema = "client"
)

// RunMigrations applies all pending migrations of the given schema embedded in
// the binary. It is safe to call on every startup; already-applied migrations
// are skipped.
func RunMigrations(db *sql.DB, schema Schema) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+string(schema))
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run %s migrations: %w", schema, err)
	}

	return nil
}
