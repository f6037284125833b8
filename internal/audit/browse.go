package audit

import (
	"context"
	"fmt"
	"math"

	"github.com/hivemindd/admin-auth/internal/model"
)

const (
	DefaultPerPage = 50
	maxPerPage     = 200
)

type Page struct {
	Items    []*model.AuditLog `json:"data"`
	Total    int64             `json:"total"`
	Page     int               `json:"current_page"`
	PerPage  int               `json:"per_page"`
	LastPage int               `json:"last_page"`
}

// List returns one page of entries matching filter, newest first. Page
// numbers start at 1.
func (l *Logger) List(ctx context.Context, filter model.AuditLogFilter, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	// Keeps (page-1)*perPage from overflowing into a negative offset.
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}

	items, total, err := l.store.ListAuditLogs(ctx, filter, (page-1)*perPage, perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}
	return &Page{
		Items:    items,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		LastPage: lastPage,
	}, nil
}

// Get returns nil, nil when id is unknown.
func (l *Logger) Get(ctx context.Context, id uint) (*model.AuditLog, error) {
	entry, err := l.store.GetAuditLog(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log %d: %w", id, err)
	}
	return entry, nil
}
