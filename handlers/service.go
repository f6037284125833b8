package handlers

import (
	"context"

	"github.com/hivemindd/admin-auth/config"
	"github.com/hivemindd/admin-auth/internal/audit"
	"github.com/hivemindd/admin-auth/internal/auth"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Pinger is a dependency the health endpoint reports on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service struct holds all variables common to all handlers.
// That is why members have to be safe for concurrent use and do not cause race conditions!
type Service struct {
	ServiceName    string
	Config         *config.Config
	AuthService    *auth.AuthClient
	Audit          *audit.Logger
	Logger         *zap.Logger
	Dependencies   map[string]Pinger
	TracerProvider *trace.TracerProvider
}
