package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the schema for a project ("portal" or "events"). Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB, project string) error {
	schema, err := migrations.ReadFile("migrations/" + project + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for project %q: %w", project, err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("migrate %s: %w", project, err)
	}
	return nil
}
