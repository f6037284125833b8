package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/hivemindd/admin-auth/internal/auth"
)

type response struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
}

type errorResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error"`
}

func jsonOK(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, response{Data: data, Message: message})
}

func jsonError(c *gin.Context, status int, data any, format string, args ...any) {
	c.AbortWithStatusJSON(status, errorResponse{Data: data, Error: fmt.Sprintf(format, args...)})
}

// handleError maps service errors onto HTTP statuses for JSON callers.
func handleError(c *gin.Context, err error) {
	if blocked, ok := auth.IsBlocked(err); ok {
		c.Header("Retry-After", fmt.Sprint(blocked.RemainingMinutes*60))
		jsonError(c, http.StatusTooManyRequests, gin.H{"retry_after": blocked.RemainingMinutes * 60}, "%s", blockedMessage(blocked))
		return
	}

	var validationErrs validation.Errors
	switch {
	case errors.As(err, &validationErrs):
		jsonError(c, http.StatusBadRequest, validationErrs, "invalid request")
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidCode):
		jsonError(c, http.StatusUnauthorized, nil, "%s", userMessage(err))
	case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrTwoFactorLocked):
		jsonError(c, http.StatusUnauthorized, nil, "%s", userMessage(err))
	default:
		jsonError(c, http.StatusInternalServerError, nil, "internal server error")
	}
}

// expectsJSON follows the usual XHR and Accept header conventions.
func expectsJSON(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

func blockedMessage(blocked *auth.BlockedError) string {
	return fmt.Sprintf("IP blocked after too many attempts. Try again in %d minutes.", blocked.RemainingMinutes)
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid credentials."
	case errors.Is(err, auth.ErrInvalidCode):
		return "Invalid 2FA code."
	case errors.Is(err, auth.ErrTwoFactorLocked):
		return "Too many invalid 2FA codes. Please log in again."
	case errors.Is(err, auth.ErrSessionNotFound):
		return "Session expired. Please log in again."
	}
	if blocked, ok := auth.IsBlocked(err); ok {
		return blockedMessage(blocked)
	}
	return "Something went wrong. Please try again."
}
