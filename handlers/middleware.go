package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/hivemindd/admin-auth/internal/audit"
	"github.com/hivemindd/admin-auth/internal/auth"
	"github.com/hivemindd/admin-auth/internal/model"
	"go.uber.org/zap"
)

const (
	ctxSessionKey = "admin_session"
	ctxBlockedKey = "admin_ip_blocked"
)

func (s *Service) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("latency", time.Since(start)),
		zap.String("ip", c.ClientIP()),
		zap.String("request_id", requestid.Get(c)),
	}
	// The handler that failed has already logged the cause at error level.
	if c.Writer.Status() >= http.StatusInternalServerError {
		s.Logger.Warn("request failed", fields...)
		return
	}
	s.Logger.Info("request", fields...)
}

// withRequestInfo stamps the caller's address and user agent on the request
// context so audit entries written further down carry them.
func (s *Service) withRequestInfo(c *gin.Context) {
	ctx := audit.WithRequestInfo(c.Request.Context(), audit.RequestInfo{
		IpAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// ipGate runs before any credential or session logic. The login page
// itself stays reachable so it can explain the block.
func (s *Service) ipGate(c *gin.Context) {
	err := s.AuthService.CheckIP(c.Request.Context(), c.ClientIP())
	if err == nil {
		c.Next()
		return
	}

	blocked, ok := auth.IsBlocked(err)
	if !ok {
		s.fail(c, err)
		return
	}
	if expectsJSON(c) {
		handleError(c, err)
		return
	}
	if c.Request.Method == http.MethodGet && c.FullPath() == s.path("/login") {
		c.Set(ctxBlockedKey, blocked)
		c.Next()
		return
	}
	s.redirect(c, s.path("/login"))
}

// requireSession resolves the session cookie, slides its inactivity window
// and hands the session to the next handler.
func (s *Service) requireSession(c *gin.Context) {
	ctx := c.Request.Context()
	token := s.sessionToken(c)

	state, session, err := s.AuthService.State(ctx, token)
	if err != nil {
		s.fail(c, err)
		return
	}
	if state == auth.StateAnonymous {
		s.sessionExpired(c, token != "")
		return
	}

	err = s.AuthService.TouchSession(ctx, session)
	if errors.Is(err, auth.ErrSessionNotFound) {
		s.sessionExpired(c, true)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	s.setSessionCookie(c, token)
	c.Set(ctxSessionKey, session)
	c.Next()
}

func (s *Service) sessionExpired(c *gin.Context, hadCookie bool) {
	if hadCookie {
		s.clearSessionCookie(c)
	}
	if expectsJSON(c) {
		jsonError(c, http.StatusUnauthorized, nil, "authentication required")
		return
	}
	if hadCookie {
		s.setFlash(c, flashError, "Session expired after inactivity. Please log in again.")
	}
	s.redirect(c, s.path("/login"))
}

func (s *Service) requireTwoFactor(c *gin.Context) {
	session := currentSession(c)
	if session != nil && session.TwoFactorConfirmed {
		c.Next()
		return
	}
	if expectsJSON(c) {
		jsonError(c, http.StatusForbidden, nil, "two-factor verification required")
		return
	}
	s.redirect(c, s.path("/2fa"))
}

func currentSession(c *gin.Context) *model.AdminSession {
	v, ok := c.Get(ctxSessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*model.AdminSession)
	return session
}

func (s *Service) redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
	c.Abort()
}

// fail answers an unexpected error without leaking it to the client.
func (s *Service) fail(c *gin.Context, err error) {
	s.Logger.Error("admin request failed", zap.String("path", c.FullPath()), zap.Error(err))
	_ = c.Error(err)
	if expectsJSON(c) {
		jsonError(c, http.StatusInternalServerError, nil, "internal server error")
		return
	}
	c.HTML(http.StatusInternalServerError, "error.html", gin.H{
		"Title":   "Error",
		"Message": userMessage(err),
	})
	c.Abort()
}

func (s *Service) path(suffix string) string {
	return s.Config.Admin.PathPrefix + suffix
}
