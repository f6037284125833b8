package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/hivemindd/admin-auth/internal/model"
	"github.com/mssola/user_agent"
)

const (
	maxExportRows = 10000
	exportTime    = "02/01/2006 15:04:05"
	utf8BOM       = "\xEF\xBB\xBF"
)

var exportHeader = []string{
	"Date", "Action", "Resource type", "Resource ID", "Status", "IP address", "Browser",
}

// ExportCSV writes up to maxExportRows matching entries as a
// semicolon-separated sheet, newest first, and returns how many rows were
// written.
func (l *Logger) ExportCSV(ctx context.Context, w io.Writer, filter model.AuditLogFilter) (int, error) {
	items, _, err := l.store.ListAuditLogs(ctx, filter, 0, maxExportRows)
	if err != nil {
		return 0, fmt.Errorf("failed to load audit logs for export: %w", err)
	}

	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(exportHeader); err != nil {
		return 0, err
	}
	for _, item := range items {
		if err := cw.Write(exportRow(item)); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return len(items), nil
}

func exportRow(item *model.AuditLog) []string {
	return []string{
		item.CreatedAt.Format(exportTime),
		item.Action,
		deref(item.AuditableType),
		deref(item.AuditableID),
		string(item.Status),
		deref(item.IpAddress),
		DescribeUserAgent(deref(item.UserAgent)),
	}
}

// DescribeUserAgent shortens a raw User-Agent to "Browser / OS".
func DescribeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := user_agent.New(raw)
	name, _ := ua.Browser()
	return strings.Trim(name+" / "+ua.OSInfo().Name, " /")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
