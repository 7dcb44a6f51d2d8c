package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// VisitFlag records that an encounter has been seen.
type VisitFlag struct {
	Identity string
	SeenAt   time.Time
}

// VisitRepo persists seen flags. It satisfies engine.FlagStore.
type VisitRepo struct{ db *DB }

func NewVisitRepo(db *DB) *VisitRepo { return &VisitRepo{db: db} }

func (r *VisitRepo) Flag(ctx context.Context, identity string) (bool, error) {
	var n int64
	row := r.db.gorm.WithContext(ctx).Raw(`SELECT COUNT(1) FROM visit_flags WHERE identity = ?`, identity).Row()
	if err := row.Scan(&n); err != nil {
		return false, wrap(err, "read visit flag")
	}
	return n > 0, nil
}

// SetFlag writes the flag once; rewriting an existing flag keeps the first
// seen_at.
func (r *VisitRepo) SetFlag(ctx context.Context, identity string) error {
	err := r.db.gorm.WithContext(ctx).Exec(`INSERT INTO visit_flags(identity, seen_at) VALUES (?, ?)
	ON CONFLICT (identity) DO NOTHING`, identity, time.Now().UTC()).Error
	return wrap(err, "write visit flag")
}

// List returns every flag, oldest first.
func (r *VisitRepo) List(ctx context.Context) ([]VisitFlag, error) {
	rows, err := r.db.gorm.WithContext(ctx).Raw(`SELECT identity, seen_at FROM visit_flags ORDER BY seen_at, identity`).Rows()
	if err != nil {
		return nil, wrap(err, "list visit flags")
	}
	defer rows.Close()
	var out []VisitFlag
	for rows.Next() {
		var f VisitFlag
		if err := rows.Scan(&f.Identity, &f.SeenAt); err != nil {
			return nil, wrap(err, "scan visit flag")
		}
		out = append(out, f)
	}
	return out, wrap(rows.Err(), "list visit flags")
}

// Reset clears the named flags, or all flags when none are named. It is the
// only way a flag is ever cleared.
func (r *VisitRepo) Reset(ctx context.Context, identities ...string) (int64, error) {
	var n int64
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		if len(identities) == 0 {
			tx = tx.Exec(`DELETE FROM visit_flags`)
		} else {
			tx = tx.Exec(`DELETE FROM visit_flags WHERE identity IN ?`, identities)
		}
		n = tx.RowsAffected
		return tx.Error
	})
	if err != nil {
		return 0, wrap(err, "reset visit flags")
	}
	return n, nil
}

const lastRoute = "last"

// ProgressRepo remembers where the visitor was.
type ProgressRepo struct{ db *DB }

func NewProgressRepo(db *DB) *ProgressRepo { return &ProgressRepo{db: db} }

func (r *ProgressRepo) RecordRoute(ctx context.Context, route string) error {
	err := r.db.gorm.WithContext(ctx).Exec(`INSERT INTO progress(name, route, updated_at) VALUES (?, ?, ?)
	ON CONFLICT (name) DO UPDATE SET route = excluded.route, updated_at = excluded.updated_at`, lastRoute, route, time.Now().UTC()).Error
	return wrap(err, "record route")
}

// LastRoute returns the most recently recorded route.
func (r *ProgressRepo) LastRoute(ctx context.Context) (string, bool, error) {
	var routes []string
	err := r.db.gorm.WithContext(ctx).Raw(`SELECT route FROM progress WHERE name = ?`, lastRoute).Scan(&routes).Error
	if err != nil {
		return "", false, wrap(err, "read last route")
	}
	if len(routes) == 0 {
		return "", false, nil
	}
	return routes[0], true, nil
}

// Helper error wrap
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
