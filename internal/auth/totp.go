package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
	codeLength = 6
)

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      totpSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TOTPVerifier validates codes against the configured admin secret,
// accepting the current time step and one step either side.
type TOTPVerifier struct {
	secret string
}

func NewTOTPVerifier(secret string) *TOTPVerifier {
	return &TOTPVerifier{secret: normalizeSecret(secret)}
}

func (v *TOTPVerifier) Configured() bool {
	return v.secret != ""
}

// Verify never returns an error; malformed input is just a wrong code.
func (v *TOTPVerifier) Verify(code string) bool {
	if !v.Configured() || !IsWellFormedCode(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, v.secret, timeNow().UTC(), totpOpts)
	if err != nil {
		return false
	}
	return ok
}

// IsWellFormedCode reports whether code is exactly six ASCII digits.
func IsWellFormedCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// GenerateTOTPCode returns the code for secret at t.
func GenerateTOTPCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(normalizeSecret(secret), t.UTC(), totpOpts)
}

// GenerateTOTPSecret creates a new base32 secret and its otpauth:// URL.
func GenerateTOTPSecret(issuer, accountName string) (string, string, error) {
	if strings.TrimSpace(accountName) == "" {
		return "", "", fmt.Errorf("accountName cannot be empty for TOTP secret generation")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		SecretSize:  20,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

func normalizeSecret(secret string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
}
