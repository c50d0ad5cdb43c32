// Package migrate applies the embedded goose SQL migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migration files are generated.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations exposes the shipped SQL files rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type Migrator struct {
	provider *goose.Provider
}

// AppliedStep reports one migration moved by Up, Down or To.
type AppliedStep struct {
	Version   int64
	File      string
	Direction string
	Millis    int64
}

type StatusRow struct {
	Version int64
	File    string
	Applied bool
}

func New(db *sql.DB, migrations fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	if migrations == nil {
		migrations = Migrations()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("migrate: goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

func (m *Migrator) Up(ctx context.Context) ([]AppliedStep, error) {
	results, err := m.provider.Up(ctx)
	return steps(results), wrap("up", err)
}

// Down rolls back only the most recent migration.
func (m *Migrator) Down(ctx context.Context) ([]AppliedStep, error) {
	result, err := m.provider.Down(ctx)
	if result == nil {
		return nil, wrap("down", err)
	}
	return steps([]*goose.MigrationResult{result}), wrap("down", err)
}

// To moves the schema up or down until it sits at version.
func (m *Migrator) To(ctx context.Context, version string) ([]AppliedStep, error) {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("migrate: version %q is not YYYYMMDDHHMMSS: %w", version, err)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, wrap("db version", err)
	}

	var results []*goose.MigrationResult
	switch {
	case target > current:
		results, err = m.provider.UpTo(ctx, target)
	case target < current:
		results, err = m.provider.DownTo(ctx, target)
	}
	return steps(results), wrap("to "+version, err)
}

func (m *Migrator) Status(ctx context.Context) ([]StatusRow, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, wrap("status", err)
	}
	rows := make([]StatusRow, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, StatusRow{
			Version: st.Source.Version,
			File:    st.Source.Path,
			Applied: st.State == goose.StateApplied,
		})
	}
	return rows, nil
}

func steps(results []*goose.MigrationResult) []AppliedStep {
	out := make([]AppliedStep, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, AppliedStep{
			Version:   r.Source.Version,
			File:      r.Source.Path,
			Direction: r.Direction,
			Millis:    r.Duration.Milliseconds(),
		})
	}
	return out
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("migrate %s: %w", op, err)
}
