package store

import (
	"context"
	"errors"

	"github.com/hivemindd/admin-auth/internal/auth"
	"gorm.io/gorm"
)

// PostgresStore embeds gorm type to provide extra methods specific to admin-auth.
type PostgresStore struct {
	db *gorm.DB
}

var _ auth.AggregateStoreTx = (*PostgresStore)(nil)
var _ auth.SessionRepository = (*PostgresStore)(nil)

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) InTx(ctx context.Context, f auth.TxF) error {
	tx := p.db.WithContext(ctx).Begin()
	err := tx.Error
	if err != nil {
		return err
	}
	defer tx.Rollback()
	agg := NewPostgresStore(tx)
	err = f(ctx, agg)
	if err != nil {
		return err
	}
	return tx.Commit().Error
}

// Ping checks the database connection, for health probes.
func (p *PostgresStore) Ping(ctx context.Context) error {
	rawDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return rawDB.PingContext(ctx)
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
