package store

import (
	"context"
	"strings"

	"github.com/hivemindd/admin-auth/internal/model"
	"gorm.io/gorm"
)

const categoryAuth = "auth"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (p *PostgresStore) CreateAuditLog(ctx context.Context, entry *model.AuditLog) error {
	return p.db.WithContext(ctx).Create(entry).Error
}

func (p *PostgresStore) ListAuditLogs(ctx context.Context, filter model.AuditLogFilter, offset, limit int) ([]*model.AuditLog, int64, error) {
	var (
		total int64
		items []*model.AuditLog
	)

	query := filterAuditLogs(p.db.WithContext(ctx).Model(&model.AuditLog{}), filter).
		Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (p *PostgresStore) GetAuditLog(ctx context.Context, id uint) (*model.AuditLog, error) {
	var entry model.AuditLog

	err := p.db.WithContext(ctx).First(&entry, id).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}

	return &entry, nil
}

// filterAuditLogs narrows db to the entries matching filter. Category
// "auth" covers both the generic auth.* actions and the admin_* ones.
func filterAuditLogs(db *gorm.DB, filter model.AuditLogFilter) *gorm.DB {
	switch filter.Category {
	case "":
	case categoryAuth:
		db = db.Where(`(action LIKE ? ESCAPE '\' OR action LIKE ? ESCAPE '\')`, "auth.%", `admin\_%`)
	default:
		db = db.Where(`action LIKE ? ESCAPE '\'`, likeEscaper.Replace(filter.Category)+".%")
	}
	if filter.Action != "" {
		db = db.Where("action = ?", filter.Action)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		db = db.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("created_at <= ?", *filter.To)
	}
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		db = db.Where(`(LOWER(action) LIKE ? ESCAPE '\' OR LOWER(ip_address) LIKE ? ESCAPE '\' OR LOWER(CAST(metadata AS TEXT)) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern)
	}
	return db
}
