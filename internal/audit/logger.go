package audit

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/hivemindd/admin-auth/internal/metrics"
	"github.com/hivemindd/admin-auth/internal/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var timeNow = time.Now

// Store persists audit entries. Entries are append-only.
type Store interface {
	CreateAuditLog(ctx context.Context, entry *model.AuditLog) error
	ListAuditLogs(ctx context.Context, filter model.AuditLogFilter, offset, limit int) ([]*model.AuditLog, int64, error)
	// GetAuditLog returns nil, nil when the entry does not exist.
	GetAuditLog(ctx context.Context, id uint) (*model.AuditLog, error)
}

// Entry is one auditable event. Subject is optional.
type Entry struct {
	Action    string
	Subject   Entity
	OldValues map[string]any
	NewValues map[string]any
	Status    model.AuditStatus
	Metadata  map[string]any
}

type Logger struct {
	store  Store
	logger *zap.Logger
}

func NewLogger(store Store, logger *zap.Logger) *Logger {
	return &Logger{
		store:  store,
		logger: logger.Named("audit"),
	}
}

// Log writes one entry stamped with the request info carried by ctx. A
// failed write is reported on the error log, which is shipped to Sentry,
// and returned; callers describing a primary action may ignore it.
func (l *Logger) Log(ctx context.Context, entry Entry) (*model.AuditLog, error) {
	if entry.Action == "" {
		return nil, errors.New("audit action is required")
	}
	if entry.Status == "" {
		entry.Status = model.AuditStatusSuccess
	}

	info := RequestInfoFrom(ctx)
	record := &model.AuditLog{
		UserID:    info.UserID,
		Action:    entry.Action,
		OldValues: jsonMap(FilterSensitive(entry.OldValues)),
		NewValues: jsonMap(FilterSensitive(entry.NewValues)),
		IpAddress: optionalString(info.IpAddress),
		UserAgent: optionalString(info.UserAgent),
		Status:    entry.Status,
		Metadata:  jsonMap(entry.Metadata),
		CreatedAt: timeNow(),
	}
	if entry.Subject != nil {
		kind, id := entry.Subject.AuditKind(), entry.Subject.AuditID()
		record.AuditableType = &kind
		record.AuditableID = &id
	}

	if err := l.store.CreateAuditLog(ctx, record); err != nil {
		metrics.AuditWriteFailures.Inc()
		l.logger.Error("failed to write audit log",
			zap.String("action", entry.Action),
			zap.String("status", string(entry.Status)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to write audit log: %w", err)
	}
	return record, nil
}

// Record is Log for callers whose own outcome must not depend on the audit
// write.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	_, _ = l.Log(ctx, entry)
}

func (l *Logger) LogCreated(ctx context.Context, e Entity) (*model.AuditLog, error) {
	return l.Log(ctx, Entry{
		Action:    e.AuditKind() + ".created",
		Subject:   e,
		NewValues: e.AuditAttributes(),
	})
}

// LogUpdated records the fields of e that differ from before. Nothing is
// written when only deny-listed fields changed.
func (l *Logger) LogUpdated(ctx context.Context, e Entity, before map[string]any) (*model.AuditLog, error) {
	oldValues, newValues := diff(before, e.AuditAttributes())
	if len(newValues) == 0 && len(oldValues) == 0 {
		return nil, nil
	}
	return l.Log(ctx, Entry{
		Action:    e.AuditKind() + ".updated",
		Subject:   e,
		OldValues: oldValues,
		NewValues: newValues,
	})
}

func (l *Logger) LogDeleted(ctx context.Context, e Entity) (*model.AuditLog, error) {
	return l.Log(ctx, Entry{
		Action:    e.AuditKind() + ".deleted",
		Subject:   e,
		OldValues: e.AuditAttributes(),
	})
}

func (l *Logger) LogCustomAction(ctx context.Context, e Entity, action string, metadata map[string]any) (*model.AuditLog, error) {
	return l.Log(ctx, Entry{
		Action:   e.AuditKind() + "." + action,
		Subject:  e,
		Metadata: metadata,
	})
}

func (l *Logger) LogExport(ctx context.Context, exportType string, metadata map[string]any) (*model.AuditLog, error) {
	return l.Log(ctx, ExportEntry(exportType, metadata))
}

// ExportEntry describes a data export, for callers that record it through
// Record.
func ExportEntry(exportType string, metadata map[string]any) Entry {
	return Entry{
		Action:   "export." + exportType,
		Metadata: metadata,
	}
}

func (l *Logger) LogLogin(ctx context.Context) {
	l.Record(ctx, Entry{Action: model.ActionLogin})
}

func (l *Logger) LogLoginFailed(ctx context.Context, email string) {
	var metadata map[string]any
	if email != "" {
		metadata = map[string]any{"email": email}
	}
	l.Record(ctx, Entry{
		Action:   model.ActionLoginFailed,
		Status:   model.AuditStatusFailed,
		Metadata: metadata,
	})
}

func (l *Logger) LogLogout(ctx context.Context) {
	l.Record(ctx, Entry{Action: model.ActionLogout})
}

func (l *Logger) LogPasswordChanged(ctx context.Context) {
	l.Record(ctx, Entry{Action: model.ActionPasswordChanged})
}

func (l *Logger) Log2FAEnabled(ctx context.Context) {
	l.Record(ctx, Entry{Action: model.Action2FAEnabled})
}

func (l *Logger) Log2FADisabled(ctx context.Context) {
	l.Record(ctx, Entry{Action: model.Action2FADisabled})
}

// diff returns the before and after values of every non-excluded field
// whose value changed.
func diff(before, after map[string]any) (map[string]any, map[string]any) {
	oldValues := map[string]any{}
	newValues := map[string]any{}
	for k, v := range after {
		if IsExcludedField(k) {
			continue
		}
		prev, existed := before[k]
		if existed && reflect.DeepEqual(prev, v) {
			continue
		}
		if existed {
			oldValues[k] = prev
		}
		newValues[k] = v
	}
	return oldValues, newValues
}

func jsonMap(values map[string]any) datatypes.JSONMap {
	if values == nil {
		return nil
	}
	return datatypes.JSONMap(values)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
