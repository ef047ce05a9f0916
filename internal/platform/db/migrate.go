package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrChecksumMismatch means an applied migration file was edited afterwards.
var ErrChecksumMismatch = errors.New("applied migration has changed")

// Migration is one versioned SQL file, named "<version>_<name>.sql".
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

type appliedRow struct {
	at       time.Time
	checksum string
}

// Migrator applies the SQL files of one directory to a schema, recording
// them in <schema>.schema_migrations.
type Migrator struct {
	pool  *pgxpool.Pool
	files fs.FS
	dir   string
}

// NewMigrator reads migrations from dir within files, usually an embed.FS.
func NewMigrator(pool *pgxpool.Pool, files fs.FS, dir string) *Migrator {
	if dir == "" {
		dir = "."
	}
	return &Migrator{pool: pool, files: files, dir: dir}
}

func parseMigrationName(name string) (int, bool) {
	if !strings.HasSuffix(name, ".sql") {
		return 0, false
	}
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	return v, err == nil && v > 0
}

// LoadMigrations returns the directory's migrations in version order.
// Files not named like a migration are ignored; two files with the same
// version are an error.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.files, m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory %s: %w", m.dir, err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, e := range entries {
		version, ok := parseMigrationName(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, e.Name(), version)
		}
		seen[version] = e.Name()

		body, err := fs.ReadFile(m.files, path.Join(m.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(body)
		out = append(out, Migration{
			Version:  version,
			Name:     e.Name(),
			SQL:      string(body),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context, schema string) error {
	table := pgx.Identifier{schema, "schema_migrations"}.Sanitize()
	_, err := m.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("create migrations table in %s: %w", schema, err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context, schema string) (map[int]appliedRow, error) {
	if err := m.ensureTable(ctx, schema); err != nil {
		return nil, err
	}
	table := pgx.Identifier{schema, "schema_migrations"}.Sanitize()
	rows, err := m.pool.Query(ctx, `SELECT version, checksum, applied_at FROM `+table)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations in %s: %w", schema, err)
	}
	defer rows.Close()

	done := make(map[int]appliedRow)
	for rows.Next() {
		var (
			v int
			r appliedRow
		)
		if err := rows.Scan(&v, &r.checksum, &r.at); err != nil {
			return nil, err
		}
		done[v] = r
	}
	return done, rows.Err()
}

// Up applies every pending migration, each in its own transaction, and
// returns how many ran. It refuses to run when an applied file changed.
func (m *Migrator) Up(ctx context.Context, schema string) (int, error) {
	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}
	done, err := m.applied(ctx, schema)
	if err != nil {
		return 0, err
	}

	var pending []Migration
	for _, mig := range migrations {
		row, ok := done[mig.Version]
		switch {
		case !ok:
			pending = append(pending, mig)
		case row.checksum != mig.Checksum:
			return 0, fmt.Errorf("%w: %s", ErrChecksumMismatch, mig.Name)
		}
	}

	for i, mig := range pending {
		if err := m.apply(ctx, schema, mig); err != nil {
			return i, fmt.Errorf("migration %s: %w", mig.Name, err)
		}
	}
	return len(pending), nil
}

func (m *Migrator) apply(ctx context.Context, schema string, mig Migration) error {
	return WithTx(ctx, m.pool, func(ctx context.Context) error {
		tx := TxFromContext(ctx)
		searchPath := pgx.Identifier{schema}.Sanitize()
		if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+searchPath+", public"); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, mig.SQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO `+pgx.Identifier{schema, "schema_migrations"}.Sanitize()+` (version, name, checksum) VALUES ($1, $2, $3)`,
			mig.Version, mig.Name, mig.Checksum)
		return err
	})
}

// Status lists every known migration with when it was applied.
func (m *Migrator) Status(ctx context.Context, schema string) ([]MigrationStatus, error) {
	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}
	done, err := m.applied(ctx, schema)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		s := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if row, ok := done[mig.Version]; ok {
			at := row.at
			s.Applied, s.AppliedAt = true, &at
		}
		out = append(out, s)
	}
	return out, nil
}
