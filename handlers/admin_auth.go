package handlers

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/hivemindd/admin-auth/internal/auth"
	"github.com/hivemindd/admin-auth/internal/model"
	"go.uber.org/zap"
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

var pageTitles = map[string]string{
	"login.html":      "Login",
	"two_factor.html": "Two-factor verification",
	"dashboard.html":  "Dashboard",
}

type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required.Error("username is required")),
		validation.Field(&r.Password, validation.Required.Error("password is required")),
	)
}

type TwoFactorRequest struct {
	Code string `form:"code" json:"code"`
}

func (r TwoFactorRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code,
			validation.Required.Error("code is required"),
			validation.Match(codePattern).Error("code must be exactly 6 digits")),
	)
}

func (s *Service) ShowLogin(c *gin.Context) {
	if v, ok := c.Get(ctxBlockedKey); ok {
		s.render(c, http.StatusTooManyRequests, "login.html", gin.H{
			"Blocked": blockedMessage(v.(*auth.BlockedError)),
		})
		return
	}

	state, _, err := s.AuthService.State(c.Request.Context(), s.sessionToken(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	switch state {
	case auth.StateFullyAuthenticated:
		s.redirect(c, s.path("/dashboard"))
		return
	case auth.StatePasswordConfirmed:
		s.redirect(c, s.path("/2fa"))
		return
	}

	s.render(c, http.StatusOK, "login.html", nil)
}

func (s *Service) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req LoginRequest
	err := c.ShouldBind(&req)
	if err != nil {
		errMsg := "failed to decode admin login request"
		s.Logger.Warn(errMsg, zap.Error(err))
		s.badRequest(c, s.path("/login"), errMsg)
		return
	}

	err = req.Validate()
	if err != nil {
		s.invalid(c, s.path("/login"), err)
		return
	}

	token, err := s.AuthService.Login(ctx, model.AdminLoginArgs{
		Username:  req.Username,
		Password:  req.Password,
		IpAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		s.authFailed(c, err, s.path("/login"))
		return
	}

	s.setSessionCookie(c, token)
	if expectsJSON(c) {
		jsonOK(c, gin.H{"next": s.path("/2fa")}, "Password accepted. Enter your 2FA code.")
		return
	}
	s.redirect(c, s.path("/2fa"))
}

func (s *Service) ShowTwoFactor(c *gin.Context) {
	state, _, err := s.AuthService.State(c.Request.Context(), s.sessionToken(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	switch state {
	case auth.StateFullyAuthenticated:
		s.redirect(c, s.path("/dashboard"))
		return
	case auth.StateAnonymous:
		s.redirect(c, s.path("/login"))
		return
	}

	s.render(c, http.StatusOK, "two_factor.html", nil)
}

func (s *Service) VerifyTwoFactor(c *gin.Context) {
	ctx := c.Request.Context()

	var req TwoFactorRequest
	err := c.ShouldBind(&req)
	if err != nil {
		errMsg := "failed to decode two-factor request"
		s.Logger.Warn(errMsg, zap.Error(err))
		s.badRequest(c, s.path("/2fa"), errMsg)
		return
	}

	err = req.Validate()
	if err != nil {
		s.invalid(c, s.path("/2fa"), err)
		return
	}

	err = s.AuthService.VerifyTwoFactor(ctx, model.TwoFactorArgs{
		SessionID: s.sessionToken(c),
		Code:      req.Code,
		IpAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCode):
		s.authFailed(c, err, s.path("/2fa"))
		return
	case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrTwoFactorLocked), isBlocked(err):
		s.clearSessionCookie(c)
		s.authFailed(c, err, s.path("/login"))
		return
	default:
		s.authFailed(c, err, s.path("/login"))
		return
	}

	if expectsJSON(c) {
		jsonOK(c, gin.H{"next": s.path("/dashboard")}, "Logged in.")
		return
	}
	s.redirect(c, s.path("/dashboard"))
}

func (s *Service) Logout(c *gin.Context) {
	err := s.AuthService.Logout(c.Request.Context(), model.LogoutArgs{
		SessionID: s.sessionToken(c),
		IpAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	s.clearSessionCookie(c)
	if expectsJSON(c) {
		jsonOK(c, nil, "Logged out.")
		return
	}
	s.setFlash(c, flashSuccess, "Logged out.")
	s.redirect(c, s.path("/login"))
}

func (s *Service) Dashboard(c *gin.Context) {
	recent, err := s.Audit.List(c.Request.Context(), model.AuditLogFilter{Category: "auth"}, 1, 10)
	if err != nil {
		s.fail(c, err)
		return
	}
	if expectsJSON(c) {
		jsonOK(c, gin.H{"session": currentSession(c), "recent": recent.Items}, "Success")
		return
	}
	s.render(c, http.StatusOK, "dashboard.html", gin.H{
		"Session": currentSession(c),
		"Recent":  recent.Items,
	})
}

// authFailed answers an error from the login flow. Expected outcomes go back
// to the form with a message, anything else is a server error.
func (s *Service) authFailed(c *gin.Context, err error, back string) {
	if !auth.IsUserError(err) {
		s.fail(c, err)
		return
	}
	if expectsJSON(c) {
		handleError(c, err)
		return
	}
	s.setFlash(c, flashError, userMessage(err))
	s.redirect(c, back)
}

func isBlocked(err error) bool {
	_, ok := auth.IsBlocked(err)
	return ok
}

func (s *Service) badRequest(c *gin.Context, back, message string) {
	if expectsJSON(c) {
		jsonError(c, http.StatusBadRequest, nil, "%s", message)
		return
	}
	s.setFlash(c, flashError, "Invalid request.")
	s.redirect(c, back)
}

func (s *Service) invalid(c *gin.Context, back string, err error) {
	if expectsJSON(c) {
		handleError(c, err)
		return
	}
	s.setFlash(c, flashError, err.Error())
	s.redirect(c, back)
}

func (s *Service) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Prefix"] = s.Config.Admin.PathPrefix
	data["Title"] = pageTitles[name]
	if f := s.popFlash(c); f != nil {
		data["Flash"] = f
	}
	c.HTML(status, name, data)
}
