package store

import (
	"context"
	"errors"
	"time"

	"github.com/hivemindd/admin-auth/internal/auth"
	"github.com/hivemindd/admin-auth/internal/model"
	"gorm.io/gorm"
)

func (p *PostgresStore) CreateSession(ctx context.Context, session *model.AdminSession) error {
	err := p.db.WithContext(ctx).Create(session).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return auth.ErrDuplicateToken
	}
	return err
}

func (p *PostgresStore) GetSession(ctx context.Context, sessionID string) (*model.AdminSession, error) {
	var session model.AdminSession

	err := p.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}

	return &session, nil
}

// Each mutation writes a single column so that concurrent requests on the
// same session cannot undo each other.

func (p *PostgresStore) ConfirmSessionTwoFactor(ctx context.Context, sessionID string) error {
	return p.updateSession(ctx, sessionID, "two_factor_confirmed", true)
}

func (p *PostgresStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	return p.updateSession(ctx, sessionID, "last_activity", at)
}

func (p *PostgresStore) IncrementSessionTwoFactorFailures(ctx context.Context, sessionID string) (int, error) {
	var failures int

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AdminSession{}).
			Where("session_id = ?", sessionID).
			Update("two_factor_failures", gorm.Expr("two_factor_failures + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return auth.ErrSessionNotFound
		}
		return tx.Model(&model.AdminSession{}).
			Where("session_id = ?", sessionID).
			Select("two_factor_failures").
			Scan(&failures).Error
	})
	if err != nil {
		return 0, err
	}

	return failures, nil
}

func (p *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	return p.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.AdminSession{}).Error
}

func (p *PostgresStore) DeleteSessionsIdleSince(ctx context.Context, before time.Time) (int64, error) {
	res := p.db.WithContext(ctx).
		Where("last_activity <= ?", before).
		Delete(&model.AdminSession{})
	return res.RowsAffected, res.Error
}

func (p *PostgresStore) updateSession(ctx context.Context, sessionID, column string, value any) error {
	res := p.db.WithContext(ctx).Model(&model.AdminSession{}).
		Where("session_id = ?", sessionID).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}
