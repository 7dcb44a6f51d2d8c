package store

import (
	"context"
	"embed"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator handles DB schema migrations using golang-migrate.
type Migrator struct {
	dsn string
}

func NewMigrator(dsn string) (*Migrator, error) {
	if dsn == "" {
		return nil, errors.New("missing DSN")
	}
	return &Migrator{dsn: dsn}, nil
}

func (m *Migrator) databaseURL() (string, error) {
	if Dialect(m.dsn) == DialectPostgres {
		return m.dsn, nil
	}
	p, err := filepath.Abs(SQLitePath(m.dsn))
	if err != nil {
		return "", err
	}
	return "sqlite3://" + filepath.ToSlash(p), nil
}

func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, func(mig *migrate.Migrate) error { return mig.Up() })
}

func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, func(mig *migrate.Migrate) error { return mig.Steps(-1) })
}

func (m *Migrator) run(ctx context.Context, step func(*migrate.Migrate) error) error {
	mig, closer, err := m.migrateInstance()
	if err != nil {
		return err
	}
	defer closer()
	done := make(chan error, 1)
	go func() { done <- step(mig) }()
	select {
	case err = <-done:
	case <-ctx.Done():
		mig.GracefulStop <- true
		err = <-done
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return ErrNoChange
	}
	return err
}

func (m *Migrator) migrateInstance() (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "migration source")
	}
	url, err := m.databaseURL()
	if err != nil {
		return nil, func() {}, err
	}
	mig, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "migrate")
	}
	return mig, func() { mig.Close() }, nil
}
