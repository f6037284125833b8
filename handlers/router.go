package handlers

import (
	"embed"
	"html/template"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	cors "github.com/itsjamie/gin-cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"datetime": func(t time.Time) string { return t.Format("02/01/2006 15:04:05") },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

func SetupRouter(svr *Service) (*gin.Engine, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(requestid.New())
	router.Use(svr.requestLogger)
	router.Use(gin.Recovery())
	router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	router.Use(cors.Middleware(cors.Config{
		Origins:         svr.Config.CORSOrigins,
		Methods:         "GET, POST",
		RequestHeaders:  "Origin, Content-Type, Content-Length, Accept, X-Requested-With",
		ExposedHeaders:  "X-Request-ID",
		MaxAge:          12 * time.Hour,
		Credentials:     false,
		ValidateHeaders: false,
	}))
	router.SetHTMLTemplate(tmpl)

	router.GET("/service/api/admin-auth/v1/health", svr.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := router.Group(svr.Config.Admin.PathPrefix, svr.withRequestInfo, svr.ipGate)
	admin.GET("/login", svr.ShowLogin)
	admin.POST("/login", svr.Login)
	admin.GET("/2fa", svr.ShowTwoFactor)
	admin.POST("/2fa", svr.VerifyTwoFactor)

	session := admin.Group("", svr.requireSession)
	session.POST("/logout", svr.Logout)

	panel := session.Group("", svr.requireTwoFactor)
	panel.GET("", svr.Dashboard)
	panel.GET("/dashboard", svr.Dashboard)
	panel.GET("/audit-logs", svr.ListAuditLogs)
	panel.GET("/audit-logs/export", svr.ExportAuditLogs)
	panel.GET("/audit-logs/:id", svr.ShowAuditLog)
	panel.POST("/sessions/cleanup", svr.CleanupSessions)

	return router, nil
}
