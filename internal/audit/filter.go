package audit

import (
	"strings"
)

// excludedFields never reach the audit table, whatever the caller passes.
var excludedFields = map[string]struct{}{
	"password":                  {},
	"remember_token":            {},
	"two_factor_secret":         {},
	"two_factor_recovery_codes": {},
	"email_verified_at":         {},
	"created_at":                {},
	"updated_at":                {},
	"deleted_at":                {},
}

func IsExcludedField(field string) bool {
	_, ok := excludedFields[strings.ToLower(field)]
	return ok
}

// FilterSensitive returns a copy of values without deny-listed keys.
func FilterSensitive(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	filtered := make(map[string]any, len(values))
	for k, v := range values {
		if IsExcludedField(k) {
			continue
		}
		filtered[k] = v
	}
	return filtered
}
