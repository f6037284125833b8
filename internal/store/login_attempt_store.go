package store

import (
	"context"
	"time"

	"github.com/hivemindd/admin-auth/internal/model"
)

func (p *PostgresStore) CreateLoginAttempt(ctx context.Context, attempt *model.LoginAttempt) error {
	if attempt.Kind == "" {
		attempt.Kind = model.AttemptPassword
	}
	return p.db.WithContext(ctx).Create(attempt).Error
}

func (p *PostgresStore) CountFailedLoginAttemptsSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	return p.countFailedAttempts(ctx, ip, model.AttemptPassword, since)
}

func (p *PostgresStore) GetLatestFailedLoginAttemptSince(ctx context.Context, ip string, since time.Time) (*model.LoginAttempt, error) {
	return p.latestFailedAttempt(ctx, ip, model.AttemptPassword, since)
}

func (p *PostgresStore) CountFailedTwoFactorAttemptsSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	return p.countFailedAttempts(ctx, ip, model.AttemptTwoFactor, since)
}

func (p *PostgresStore) GetLatestFailedTwoFactorAttemptSince(ctx context.Context, ip string, since time.Time) (*model.LoginAttempt, error) {
	return p.latestFailedAttempt(ctx, ip, model.AttemptTwoFactor, since)
}

func (p *PostgresStore) DeleteFailedLoginAttempts(ctx context.Context, ip string) (int64, error) {
	res := p.db.WithContext(ctx).
		Where("ip_address = ? AND successful = ?", ip, false).
		Delete(&model.LoginAttempt{})
	return res.RowsAffected, res.Error
}

func (p *PostgresStore) DeleteLoginAttemptsBefore(ctx context.Context, before time.Time) (int64, error) {
	res := p.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&model.LoginAttempt{})
	return res.RowsAffected, res.Error
}

func (p *PostgresStore) countFailedAttempts(ctx context.Context, ip string, kind model.AttemptKind, since time.Time) (int64, error) {
	var count int64

	err := p.db.WithContext(ctx).Model(&model.LoginAttempt{}).
		Where("ip_address = ? AND kind = ? AND successful = ? AND created_at >= ?", ip, kind, false, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (p *PostgresStore) latestFailedAttempt(ctx context.Context, ip string, kind model.AttemptKind, since time.Time) (*model.LoginAttempt, error) {
	var attempt model.LoginAttempt

	err := p.db.WithContext(ctx).
		Where("ip_address = ? AND kind = ? AND successful = ? AND created_at >= ?", ip, kind, false, since).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}

	return &attempt, nil
}
