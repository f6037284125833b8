package main

import (
	"context"
	"time"

	"github.com/hivemindd/admin-auth/internal/auth"
	"go.uber.org/zap"
)

// runSweeper deletes idle sessions and stale login attempts until ctx is done.
func runSweeper(ctx context.Context, authService *auth.AuthClient, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, authService, logger)
		}
	}
}

func sweep(ctx context.Context, authService *auth.AuthClient, logger *zap.Logger) {
	sessions, err := authService.CleanupExpiredSessions(ctx)
	if err != nil {
		logger.Error("failed to delete idle admin sessions", zap.Error(err))
	}
	attempts, err := authService.PruneLoginAttempts(ctx)
	if err != nil {
		logger.Error("failed to prune login attempts", zap.Error(err))
	}
	if sessions > 0 || attempts > 0 {
		logger.Info("swept admin auth tables", zap.Int64("sessions", sessions), zap.Int64("login_attempts", attempts))
	}
}
