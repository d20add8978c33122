package lineage

import (
	"context"
	"database/sql"
	"fmt"
)

// TableDDL returns the canonical DDL for a version table. Every record family
// gets its own table with this exact shape; the partial unique index is the
// storage-level backstop for the single-current-version invariant.
func TableDDL(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id UUID PRIMARY KEY,
	scope_key UUID NOT NULL,
	business_key UUID NOT NULL,
	version INTEGER NOT NULL CHECK (version > 0),
	valid_from TIMESTAMPTZ NOT NULL,
	valid_to TIMESTAMPTZ,
	is_current BOOLEAN NOT NULL,
	payload JSONB NOT NULL,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	CONSTRAINT %[1]s_version_unique UNIQUE (scope_key, business_key, version),
	CONSTRAINT %[1]s_closed_shape CHECK (is_current = (valid_to IS NULL))
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_%[1]s_current ON %[1]s (scope_key, business_key) WHERE is_current;
CREATE INDEX IF NOT EXISTS ix_%[1]s_scope ON %[1]s (scope_key, business_key, version);
`, table)
}

// EnsureTable creates the version table if it does not exist. The surrounding
// application owns real schema management; this helper serves tests and the
// lineage-audit tooling.
func EnsureTable(ctx context.Context, db *sql.DB, table string) error {
	if _, err := db.ExecContext(ctx, TableDDL(table)); err != nil {
		return fmt.Errorf("ensure version table %s: %w", table, err)
	}
	return nil
}
