package auth

import (
	"crypto/subtle"

	"github.com/hivemindd/admin-auth/config"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// CredentialValidator checks the single configured admin identity.
type CredentialValidator struct {
	username     string
	passwordHash []byte
}

func NewCredentialValidator(admin config.Admin) *CredentialValidator {
	return &CredentialValidator{
		username:     admin.Username,
		passwordHash: []byte(admin.PasswordHash),
	}
}

// Configured reports whether an admin identity is set at all.
func (v *CredentialValidator) Configured() bool {
	return v.username != "" && len(v.passwordHash) > 0
}

// Validate fails closed when the admin identity is not configured. The
// bcrypt comparison runs even for a wrong username.
func (v *CredentialValidator) Validate(username, password string) bool {
	if !v.Configured() {
		return false
	}
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	passwordOK := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password)) == nil
	return usernameOK && passwordOK
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
