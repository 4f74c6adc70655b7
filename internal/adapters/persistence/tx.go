package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type txKey struct{}

// GormTxManager runs handler closures inside one GORM transaction. The
// transaction handle travels in the context; repositories pick it up via
// session. A nested WithinTx joins the outer transaction.
type GormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager creates a new transaction manager
func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

// WithinTx executes fn inside a transaction, committing on nil and rolling
// back on error.
func (m *GormTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// session resolves the active database handle: the context transaction when
// inside WithinTx, the base connection otherwise.
func session(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

// forUpdate adds a row-level exclusive lock on PostgreSQL. SQLite serializes
// writers on its own and rejects the clause, so it is skipped there.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// forUpdateSkipLocked locks matched rows and skips ones held by concurrent
// sweeps. PostgreSQL only, same SQLite carve-out as forUpdate.
func forUpdateSkipLocked(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	return db
}
