// Package migrate applies the embedded token_sessions schema with golang-migrate
// and reports the schema version before and after each run.
package migrate

import (
	"errors"
	"fmt"
	"io/fs"

	"session-authority/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	Up   = "up"
	Down = "down"
)

// ErrDirty means a previous run failed halfway. The schema must be repaired
// by hand (migrate force) before the authority can migrate again.
var ErrDirty = errors.New("token_sessions schema is dirty")

// State is the version recorded in schema_migrations.
type State struct {
	Version uint
	Dirty   bool
	// Applied is false on a database no migration has touched.
	Applied bool
}

func (s State) String() string {
	switch {
	case !s.Applied:
		return "none"
	case s.Dirty:
		return fmt.Sprintf("%d (dirty)", s.Version)
	default:
		return fmt.Sprintf("%d", s.Version)
	}
}

// Result is the schema state around one Apply.
type Result struct {
	Before State
	After  State
}

// Changed reports whether the run moved the schema.
func (r Result) Changed() bool { return r.Before != r.After }

func (r Result) String() string {
	if !r.Changed() {
		return "token_sessions schema unchanged at version " + r.After.String()
	}
	return fmt.Sprintf("token_sessions schema %s -> %s", r.Before, r.After)
}

// Run applies migrations in direction ("up" or "down"). Already being at the
// target is success.
func Run(dsn string, direction string) error {
	_, err := Apply(dsn, direction)
	return err
}

// Apply is Run that also reports the versions it moved between.
func Apply(dsn string, direction string) (Result, error) {
	if direction != Up && direction != Down {
		return Result{}, fmt.Errorf("direction must be up or down, got %q", direction)
	}
	m, err := open(dsn)
	if err != nil {
		return Result{}, err
	}
	defer func() { _, _ = m.Close() }()

	before, err := state(m)
	if err != nil {
		return Result{}, err
	}
	if before.Dirty {
		return Result{Before: before, After: before}, fmt.Errorf("%w at version %d", ErrDirty, before.Version)
	}

	if direction == Up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Result{Before: before}, fmt.Errorf("migrate %s: %w", direction, err)
	}

	after, err := state(m)
	if err != nil {
		return Result{Before: before}, err
	}
	return Result{Before: before, After: after}, nil
}

// Status returns the current schema state without changing it.
func Status(dsn string) (State, error) {
	m, err := open(dsn)
	if err != nil {
		return State{}, err
	}
	defer func() { _, _ = m.Close() }()
	return state(m)
}

// Latest returns the highest embedded migration version.
func Latest() (uint, error) {
	src, err := newSource()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("migrate source: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("migrate source: %w", err)
		}
		v = next
	}
}

func newSource() (source.Driver, error) {
	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	return src, nil
}

func open(dsn string) (*migrate.Migrate, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	src, err := newSource()
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}

func state(m *migrate.Migrate) (State, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("migrate version: %w", err)
	}
	return State{Version: v, Dirty: dirty, Applied: true}, nil
}
