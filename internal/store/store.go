package store

import (
	"context"
	"database/sql"
	errs "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DaanHessen/measures-tui/internal/util"
)

var ErrNoChange = errs.New("no change")

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DB wraps gorm.DB for repositories and exposes Close.
type DB struct {
	gorm    *gorm.DB
	sql     *sql.DB
	dialect string
}

func (d *DB) Close() error    { return d.sql.Close() }
func (d *DB) Gorm() *gorm.DB  { return d.gorm }
func (d *DB) Dialect() string { return d.dialect }

// Dialect picks the driver for a DSN: postgres URLs go to postgres,
// everything else is a sqlite file.
func Dialect(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// SQLitePath strips the scheme from a sqlite DSN.
func SQLitePath(dsn string) string {
	for _, p := range []string{"sqlite3://", "sqlite://", "file:"} {
		if strings.HasPrefix(dsn, p) {
			return strings.TrimPrefix(dsn, p)
		}
	}
	return dsn
}

// Open connects to DB per config.
func Open(ctx context.Context, cfg util.Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("missing DSN")
	}
	var (
		gdb     *gorm.DB
		err     error
		dialect = Dialect(cfg.DSN)
		gcfg    = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	)
	switch dialect {
	case DialectPostgres:
		gdb, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
	default:
		path := SQLitePath(cfg.DSN)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create database directory")
			}
		}
		gdb, err = gorm.Open(sqlite.Open(path), gcfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dialect)
	}
	sdb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if dialect == DialectPostgres {
		sdb.SetConnMaxLifetime(30 * time.Minute)
		sdb.SetMaxOpenConns(10)
		sdb.SetMaxIdleConns(5)
	} else {
		// one writer; sqlite serialises anyway
		sdb.SetMaxOpenConns(1)
	}
	if err := sdb.PingContext(ctx); err != nil {
		sdb.Close()
		return nil, errors.Wrapf(err, "ping %s", dialect)
	}
	return &DB{gorm: gdb, sql: sdb, dialect: dialect}, nil
}

// WithTx executes fn within a database transaction.
func (d *DB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.gorm.WithContext(ctx).Transaction(fn)
}
