package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	flashCookie  = "admin_flash"
	flashError   = "error"
	flashSuccess = "success"
)

// gin escapes cookie values on the way out and unescapes them on the way
// in, so tokens and flash messages are stored as-is.

func (s *Service) setSessionCookie(c *gin.Context, token string) {
	s.setCookie(c, s.Config.Admin.SessionCookie, token, s.AuthService.SessionMaxAge(), "/")
}

func (s *Service) clearSessionCookie(c *gin.Context) {
	s.setCookie(c, s.Config.Admin.SessionCookie, "", -1, "/")
}

func (s *Service) sessionToken(c *gin.Context) string {
	token, err := c.Cookie(s.Config.Admin.SessionCookie)
	if err != nil {
		return ""
	}
	return token
}

type flash struct {
	Kind    string
	Message string
}

// setFlash stores a one-shot message shown by the next rendered page.
func (s *Service) setFlash(c *gin.Context, kind, message string) {
	s.setCookie(c, flashCookie, kind+":"+message, 60, s.Config.Admin.PathPrefix)
}

func (s *Service) popFlash(c *gin.Context) *flash {
	value, err := c.Cookie(flashCookie)
	if err != nil || value == "" {
		return nil
	}
	s.setCookie(c, flashCookie, "", -1, s.Config.Admin.PathPrefix)

	kind, message, ok := strings.Cut(value, ":")
	if !ok {
		return nil
	}
	return &flash{Kind: kind, Message: message}
}

func (s *Service) setCookie(c *gin.Context, name, value string, maxAge int, path string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, path, "", !s.Config.Admin.InsecureCookie, true)
}
