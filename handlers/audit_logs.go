package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/hivemindd/admin-auth/internal/audit"
	"github.com/hivemindd/admin-auth/internal/model"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type AuditLogQuery struct {
	Category string `form:"category"`
	Action   string `form:"action"`
	Status   string `form:"status"`
	From     string `form:"from"`
	To       string `form:"to"`
	Search   string `form:"search"`
	UserID   string `form:"user_id"`
	Page     int    `form:"page"`
	PerPage  int    `form:"per_page"`
}

func (q AuditLogQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Status, validation.In(string(model.AuditStatusSuccess), string(model.AuditStatusFailed))),
		validation.Field(&q.From, validation.Date(dateLayout).Error("from must be a date like 2006-01-02")),
		validation.Field(&q.To, validation.Date(dateLayout).Error("to must be a date like 2006-01-02")),
		validation.Field(&q.UserID, is.Int),
		validation.Field(&q.Page, validation.Min(0)),
		validation.Field(&q.PerPage, validation.Min(0)),
	)
}

// Filter converts a validated query. Dates are whole UTC days, both ends
// included.
func (q AuditLogQuery) Filter() model.AuditLogFilter {
	filter := model.AuditLogFilter{
		Category: q.Category,
		Action:   q.Action,
		Status:   model.AuditStatus(q.Status),
		Search:   q.Search,
	}
	if from, err := time.Parse(dateLayout, q.From); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(dateLayout, q.To); err == nil {
		end := to.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}
	if id, err := strconv.ParseUint(q.UserID, 10, 64); err == nil {
		userID := uint(id)
		filter.UserID = &userID
	}
	return filter
}

func (s *Service) bindAuditLogQuery(c *gin.Context) (*AuditLogQuery, bool) {
	var q AuditLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		jsonError(c, http.StatusBadRequest, nil, "failed to decode audit log query: %v", err)
		return nil, false
	}
	if err := q.Validate(); err != nil {
		handleError(c, err)
		return nil, false
	}
	return &q, true
}

func (s *Service) ListAuditLogs(c *gin.Context) {
	q, ok := s.bindAuditLogQuery(c)
	if !ok {
		return
	}

	page, err := s.Audit.List(c.Request.Context(), q.Filter(), q.Page, q.PerPage)
	if err != nil {
		s.fail(c, err)
		return
	}

	jsonOK(c, page, "Success")
}

type auditLogDetail struct {
	*model.AuditLog
	ChangedFields []string `json:"changed_fields"`
	Browser       string   `json:"browser"`
}

func (s *Service) ShowAuditLog(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		jsonError(c, http.StatusBadRequest, nil, "invalid audit log id")
		return
	}

	entry, err := s.Audit.Get(c.Request.Context(), uint(id))
	if err != nil {
		s.fail(c, err)
		return
	}
	if entry == nil {
		jsonError(c, http.StatusNotFound, nil, "audit log %d not found", id)
		return
	}

	browser := ""
	if entry.UserAgent != nil {
		browser = audit.DescribeUserAgent(*entry.UserAgent)
	}
	jsonOK(c, auditLogDetail{
		AuditLog:      entry,
		ChangedFields: entry.ChangedFields(),
		Browser:       browser,
	}, "Success")
}

func (s *Service) ExportAuditLogs(c *gin.Context) {
	ctx := c.Request.Context()
	q, ok := s.bindAuditLogQuery(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	n, err := s.Audit.ExportCSV(ctx, &buf, q.Filter())
	if err != nil {
		s.fail(c, err)
		return
	}

	s.Audit.Record(ctx, audit.ExportEntry("audit_logs", map[string]any{
		"rows":     n,
		"category": q.Category,
		"status":   q.Status,
		"search":   q.Search,
	}))

	filename := fmt.Sprintf("audit-logs-%s.csv", time.Now().Format("2006-01-02-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=UTF-8", buf.Bytes())
}

func (s *Service) CleanupSessions(c *gin.Context) {
	ctx := c.Request.Context()

	sessions, err := s.AuthService.CleanupExpiredSessions(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	attempts, err := s.AuthService.PruneLoginAttempts(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.Logger.Info("admin sessions cleaned up", zap.Int64("sessions", sessions), zap.Int64("login_attempts", attempts))
	s.Audit.Record(ctx, audit.Entry{
		Action: model.ActionAdminSessionSweep,
		Metadata: map[string]any{
			"sessions":       sessions,
			"login_attempts": attempts,
		},
	})
	jsonOK(c, gin.H{"sessions": sessions, "login_attempts": attempts}, "Success")
}
