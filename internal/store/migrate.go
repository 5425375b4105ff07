package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrator applies the embedded schema migrations. Unlike the orchestrator
// service this pipeline ships as a single binary, so migrations are
// embedded rather than read from a directory on disk; the algorithm for
// picking sqlite-specific variants and tolerating re-applied ALTER TABLE
// statements is otherwise unchanged.
type migrator struct {
	db     *sql.DB
	driver string
}

func newMigrator(db *sql.DB, driver string) *migrator {
	return &migrator{db: db, driver: driver}
}

func (m *migrator) run(ctx context.Context) error {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	names, err := m.listMigrations()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		if err := m.apply(ctx, name); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (m *migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	var query string
	switch m.driver {
	case "sqlite", "":
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version TEXT UNIQUE NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`
	default:
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			version TEXT UNIQUE NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	}
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// listMigrations picks the sqlite-specific variant of a migration when one
// exists and the driver is sqlite, mirroring the orchestrator's rule.
func (m *migrator) listMigrations() ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	sqliteVariant := map[string]string{}
	regular := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		if strings.HasSuffix(name, "_sqlite.sql") {
			base := strings.TrimSuffix(name, "_sqlite.sql")
			sqliteVariant[base] = name
		} else {
			base := strings.TrimSuffix(name, ".sql")
			regular[base] = name
		}
	}

	bases := map[string]bool{}
	for b := range sqliteVariant {
		bases[b] = true
	}
	for b := range regular {
		bases[b] = true
	}

	var out []string
	for base := range bases {
		if m.driver == "sqlite" {
			if f, ok := sqliteVariant[base]; ok {
				out = append(out, f)
				continue
			}
		}
		if f, ok := regular[base]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (m *migrator) apply(ctx context.Context, name string) error {
	data, err := migrationFS.ReadFile("migrations/" + name)
	if err != nil {
		return err
	}
	sqlContent := string(data)

	hasAlterAddColumn := strings.Contains(strings.ToUpper(sqlContent), "ALTER TABLE") &&
		strings.Contains(strings.ToUpper(sqlContent), "ADD COLUMN")

	if m.driver == "sqlite" && hasAlterAddColumn {
		for _, stmt := range splitSQLStatements(sqlContent) {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" || strings.HasPrefix(stmt, "--") {
				continue
			}
			if _, err := m.db.ExecContext(ctx, stmt); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
					continue
				}
				return err
			}
		}
	} else {
		if _, err := m.db.ExecContext(ctx, sqlContent); err != nil {
			return err
		}
	}

	_, err = m.db.ExecContext(ctx, insertMigrationVersionSQL(m.driver), name)
	return err
}

func insertMigrationVersionSQL(driver string) string {
	if driver == "sqlite" || driver == "" {
		return "INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)"
	}
	return "INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING"
}

// splitSQLStatements splits SQL text into individual statements by
// semicolon, tolerating string literals. Unlike the orchestrator's
// variant it does not need to special-case trigger BEGIN/END blocks since
// this module's migrations never define triggers.
func splitSQLStatements(sqlText string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	var stringChar byte

	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		current.WriteByte(c)

		if inString {
			if c == stringChar && (i == 0 || sqlText[i-1] != '\\') {
				inString = false
			}
			continue
		}

		switch c {
		case '\'', '"':
			inString = true
			stringChar = c
		case ';':
			stmt := strings.TrimSpace(current.String())
			if stmt != "" && !strings.HasPrefix(stmt, "--") {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" && !strings.HasPrefix(stmt, "--") {
		statements = append(statements, stmt)
	}
	return statements
}
